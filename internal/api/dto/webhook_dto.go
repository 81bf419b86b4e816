package dto

// TicketDoneRequest is the field-patch callback shape.
type TicketDoneRequest struct {
	TicketID       string         `json:"ticketId"`
	Status         *string        `json:"status"`
	WorkflowStatus *string        `json:"workflowStatus"`
	Resolution     *string        `json:"resolution"`
	Metadata       map[string]any `json:"metadata"`
	Secret         string         `json:"secret"`
}

// TicketProcessRequest is the discrete-action callback shape.
type TicketProcessRequest struct {
	TicketID string             `json:"ticketId"`
	Action   string             `json:"action"`
	Data     *TicketProcessData `json:"data"`
	Secret   string             `json:"secret"`
}

// TicketProcessData carries optional action parameters.
type TicketProcessData struct {
	Resolution *string `json:"resolution"`
}

// WebhookTicketResult summarizes the ticket after a callback.
type WebhookTicketResult struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	WorkflowStatus string `json:"workflowStatus"`
}

// WebhookResponse acknowledges a processed callback.
type WebhookResponse struct {
	Success bool                `json:"success"`
	Ticket  WebhookTicketResult `json:"ticket"`
}
