package workflow

import (
	"github.com/flowbit/ticket-service/internal/domain"
	"github.com/flowbit/ticket-service/internal/repository"
	"github.com/flowbit/ticket-service/pkg/errorutil"
)

// Action enumerates the discrete callback actions the engine may send.
type Action string

const (
	ActionStartProcessing    Action = "start_processing"
	ActionProcessingComplete Action = "processing_complete"
	ActionProcessingFailed   Action = "processing_failed"
)

// Command is the single normalized form of a workflow callback. The two
// inbound payload shapes (field patch and discrete action) both collapse
// into it before any transition logic runs.
type Command struct {
	TicketID string
	patch    repository.WorkflowPatch
}

// Patch returns the store-level transition the command resolves to.
func (c Command) Patch() repository.WorkflowPatch {
	return c.patch
}

// NormalizeAction converts a discrete action callback into a Command.
// Unknown actions are a validation error; nothing is mutated for them.
func NormalizeAction(ticketID string, action Action, resolution *string) (Command, error) {
	if ticketID == "" {
		return Command{}, errorutil.NewValidationError("ticketId is required", nil)
	}

	cmd := Command{TicketID: ticketID}
	switch action {
	case ActionStartProcessing:
		cmd.patch.WorkflowStatus = workflowStatusPtr(domain.WorkflowStatusInProgress)
		cmd.patch.Status = statusPtr(domain.TicketStatusInProgress)
	case ActionProcessingComplete:
		// Re-applying leaves a Resolved/Completed ticket unchanged, so the
		// callback is safe to deliver more than once.
		cmd.patch.WorkflowStatus = workflowStatusPtr(domain.WorkflowStatusCompleted)
		cmd.patch.Status = statusPtr(domain.TicketStatusResolved)
		cmd.patch.Resolution = resolution
	case ActionProcessingFailed:
		cmd.patch.WorkflowStatus = workflowStatusPtr(domain.WorkflowStatusFailed)
	default:
		return Command{}, errorutil.NewValidationError("unknown action", map[string]any{"action": string(action)})
	}
	return cmd, nil
}

// NormalizeFields converts a field-patch callback into a Command. When the
// engine reports Completed without an explicit status, the ticket advances
// to In Progress: completion of the automation does not imply final
// resolution unless the engine says so.
func NormalizeFields(ticketID string, status *domain.TicketStatus, workflowStatus *domain.WorkflowStatus, resolution *string) (Command, error) {
	if ticketID == "" {
		return Command{}, errorutil.NewValidationError("ticketId is required", nil)
	}
	if status != nil && !domain.ValidStatus(*status) {
		return Command{}, errorutil.NewValidationError("invalid status", map[string]any{"status": string(*status)})
	}
	if workflowStatus != nil && !domain.ValidWorkflowStatus(*workflowStatus) {
		return Command{}, errorutil.NewValidationError("invalid workflowStatus", map[string]any{"workflowStatus": string(*workflowStatus)})
	}

	cmd := Command{TicketID: ticketID}
	cmd.patch.Status = status
	cmd.patch.WorkflowStatus = workflowStatus
	cmd.patch.Resolution = resolution
	if workflowStatus != nil && *workflowStatus == domain.WorkflowStatusCompleted && status == nil {
		cmd.patch.Status = statusPtr(domain.TicketStatusInProgress)
	}
	return cmd, nil
}

func statusPtr(s domain.TicketStatus) *domain.TicketStatus {
	return &s
}

func workflowStatusPtr(w domain.WorkflowStatus) *domain.WorkflowStatus {
	return &w
}
