package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowbit/ticket-service/internal/config"
	"github.com/flowbit/ticket-service/internal/domain"
	"github.com/flowbit/ticket-service/internal/events"
	"github.com/flowbit/ticket-service/internal/workflow"
	"github.com/flowbit/ticket-service/pkg/errorutil"
)

func newWebhookFixture(t *testing.T, secret string) (*WebhookService, *captureDispatcher, *domain.Ticket) {
	t.Helper()

	repo := newFakeTicketRepository()
	capture := &captureDispatcher{}
	ticketSvc := newTestService(repo, &stubWorkflow{}, capture)

	ticket, err := ticketSvc.CreateTicket(context.Background(), identityFor("tenant-a"), TicketCreateInput{
		Title:       "Mail bounce",
		Description: "outbound mail bouncing for two hours",
	})
	require.NoError(t, err)

	svc := NewWebhookService(config.WorkflowConfig{SharedSecret: secret}, repo, capture, zap.NewNop())
	return svc, capture, ticket
}

func TestVerifySecret(t *testing.T) {
	svc, _, _ := newWebhookFixture(t, "s3cret")

	require.NoError(t, svc.VerifySecret("s3cret"))

	err := svc.VerifySecret("wrong")
	var domainErr *errorutil.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "UNAUTHORIZED", domainErr.Code)
	require.Equal(t, 401, domainErr.HTTPStatus)
}

func TestVerifySecretFailsClosedWhenUnconfigured(t *testing.T) {
	svc, _, _ := newWebhookFixture(t, "")

	// Even the empty string must be rejected when no secret is configured.
	err := svc.VerifySecret("")
	var domainErr *errorutil.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "CONFIG_ERROR", domainErr.Code)
	require.Equal(t, 500, domainErr.HTTPStatus)
}

func TestApplyProcessingComplete(t *testing.T) {
	svc, capture, ticket := newWebhookFixture(t, "s3cret")

	resolution := "mail queue flushed"
	cmd, err := workflow.NormalizeAction(ticket.ID, workflow.ActionProcessingComplete, &resolution)
	require.NoError(t, err)

	updated, err := svc.Apply(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusResolved, updated.Status)
	require.Equal(t, domain.WorkflowStatusCompleted, updated.WorkflowStatus)
	require.NotNil(t, updated.Resolution)
	require.Equal(t, resolution, *updated.Resolution)
	require.NotNil(t, updated.ResolvedAt)

	// Fanout is driven by the ticket's stored tenant, not anything the
	// callback supplied.
	event, ok := capture.lastOfType(events.EventTicketWebhookProcessed)
	require.True(t, ok)
	require.Equal(t, "tenant-a", event.TenantID)

	event, ok = capture.lastOfType(events.EventTicketUpdated)
	require.True(t, ok)
	require.Equal(t, "tenant-a", event.TenantID)
}

func TestApplyIsIdempotent(t *testing.T) {
	svc, _, ticket := newWebhookFixture(t, "s3cret")

	cmd, err := workflow.NormalizeAction(ticket.ID, workflow.ActionProcessingComplete, nil)
	require.NoError(t, err)

	first, err := svc.Apply(context.Background(), cmd)
	require.NoError(t, err)
	require.NotNil(t, first.ResolvedAt)
	firstResolvedAt := *first.ResolvedAt

	second, err := svc.Apply(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, first.Status, second.Status)
	require.Equal(t, first.WorkflowStatus, second.WorkflowStatus)
	require.True(t, second.ResolvedAt.Equal(firstResolvedAt), "resolved_at must not move on redelivery")
}

func TestApplyUnknownTicket(t *testing.T) {
	svc, capture, _ := newWebhookFixture(t, "s3cret")

	cmd, err := workflow.NormalizeAction("no-such-ticket", workflow.ActionStartProcessing, nil)
	require.NoError(t, err)

	before := len(capture.published())
	_, err = svc.Apply(context.Background(), cmd)
	require.True(t, errorutil.IsNotFound(err))
	require.Len(t, capture.published(), before, "failed apply must not publish events")
}

func TestApplyFieldPatch(t *testing.T) {
	svc, _, ticket := newWebhookFixture(t, "s3cret")

	completed := domain.WorkflowStatusCompleted
	cmd, err := workflow.NormalizeFields(ticket.ID, nil, &completed, nil)
	require.NoError(t, err)

	updated, err := svc.Apply(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusInProgress, updated.Status)
	require.Equal(t, domain.WorkflowStatusCompleted, updated.WorkflowStatus)
	require.Nil(t, updated.ResolvedAt)
}
