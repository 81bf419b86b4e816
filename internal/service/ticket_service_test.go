package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowbit/ticket-service/internal/auth"
	"github.com/flowbit/ticket-service/internal/domain"
	"github.com/flowbit/ticket-service/internal/events"
	"github.com/flowbit/ticket-service/internal/repository"
	"github.com/flowbit/ticket-service/internal/tenant"
	"github.com/flowbit/ticket-service/pkg/errorutil"
)

// fakeTicketRepository mirrors the store's scoping behavior: every scoped
// method filters by the scope's tenant, and workflow transitions replicate
// the one-shot resolved_at rule.
type fakeTicketRepository struct {
	mu       sync.Mutex
	seq      int
	tickets  map[string]*domain.Ticket
	comments map[string][]domain.Comment
}

func newFakeTicketRepository() *fakeTicketRepository {
	return &fakeTicketRepository{
		tickets:  map[string]*domain.Ticket{},
		comments: map[string][]domain.Comment{},
	}
}

func (f *fakeTicketRepository) Create(_ context.Context, scope tenant.Scope, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	scope.Stamp(ticket)
	f.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", f.seq)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	f.tickets[ticket.ID] = &clone
	return nil
}

func (f *fakeTicketRepository) GetByID(_ context.Context, scope tenant.Scope, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ticket, ok := f.tickets[id]
	if !ok || ticket.TenantID != scope.TenantID() {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (f *fakeTicketRepository) List(_ context.Context, scope tenant.Scope, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Ticket
	for _, ticket := range f.tickets {
		if ticket.TenantID != scope.TenantID() {
			continue
		}
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && ticket.Priority != *filter.Priority {
			continue
		}
		if filter.Category != nil && ticket.Category != *filter.Category {
			continue
		}
		out = append(out, *ticket)
	}
	return out, len(out), nil
}

func (f *fakeTicketRepository) Update(_ context.Context, scope tenant.Scope, id string, patch repository.TicketPatch) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ticket, ok := f.tickets[id]
	if !ok || ticket.TenantID != scope.TenantID() {
		return nil, pgx.ErrNoRows
	}
	if patch.Title != nil {
		ticket.Title = *patch.Title
	}
	if patch.Description != nil {
		ticket.Description = *patch.Description
	}
	if patch.Status != nil {
		ticket.Status = *patch.Status
		if *patch.Status == domain.TicketStatusResolved && ticket.ResolvedAt == nil {
			now := time.Now()
			ticket.ResolvedAt = &now
		}
	}
	if patch.Priority != nil {
		ticket.Priority = *patch.Priority
	}
	if patch.Category != nil {
		ticket.Category = *patch.Category
	}
	if patch.Resolution != nil {
		ticket.Resolution = patch.Resolution
	}
	if patch.AssignedToUserID != nil {
		ticket.AssignedToUserID = patch.AssignedToUserID
	}
	if patch.Tags != nil {
		ticket.Tags = patch.Tags
	}
	ticket.UpdatedAt = time.Now()
	clone := *ticket
	return &clone, nil
}

func (f *fakeTicketRepository) Delete(_ context.Context, scope tenant.Scope, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ticket, ok := f.tickets[id]
	if !ok || ticket.TenantID != scope.TenantID() {
		return false, nil
	}
	delete(f.tickets, id)
	delete(f.comments, id)
	return true, nil
}

func (f *fakeTicketRepository) AppendComment(_ context.Context, scope tenant.Scope, ticketID string, comment *domain.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ticket, ok := f.tickets[ticketID]
	if !ok || ticket.TenantID != scope.TenantID() {
		return pgx.ErrNoRows
	}
	f.seq++
	comment.ID = fmt.Sprintf("comment-%d", f.seq)
	comment.TicketID = ticketID
	comment.CreatedAt = time.Now()
	f.comments[ticketID] = append(f.comments[ticketID], *comment)
	ticket.UpdatedAt = comment.CreatedAt
	return nil
}

func (f *fakeTicketRepository) ListComments(_ context.Context, scope tenant.Scope, ticketID string) ([]domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ticket, ok := f.tickets[ticketID]
	if !ok || ticket.TenantID != scope.TenantID() {
		return nil, pgx.ErrNoRows
	}
	return append([]domain.Comment{}, f.comments[ticketID]...), nil
}

func (f *fakeTicketRepository) AggregateCounts(_ context.Context, scope tenant.Scope, field string) ([]repository.GroupCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := map[string]int64{}
	for _, ticket := range f.tickets {
		if ticket.TenantID != scope.TenantID() {
			continue
		}
		switch field {
		case "status":
			counts[string(ticket.Status)]++
		case "priority":
			counts[string(ticket.Priority)]++
		case "category":
			counts[string(ticket.Category)]++
		default:
			return nil, fmt.Errorf("unsupported aggregate field %q", field)
		}
	}
	out := make([]repository.GroupCount, 0, len(counts))
	for key, count := range counts {
		out = append(out, repository.GroupCount{Key: key, Count: count})
	}
	return out, nil
}

func (f *fakeTicketRepository) GetForWorkflow(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (f *fakeTicketRepository) ApplyWorkflowTransition(_ context.Context, id string, patch repository.WorkflowPatch) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if patch.Status != nil {
		ticket.Status = *patch.Status
		if *patch.Status == domain.TicketStatusResolved && ticket.ResolvedAt == nil {
			now := time.Now()
			ticket.ResolvedAt = &now
		}
	}
	if patch.WorkflowStatus != nil {
		ticket.WorkflowStatus = *patch.WorkflowStatus
	}
	if patch.Resolution != nil {
		ticket.Resolution = patch.Resolution
	}
	ticket.UpdatedAt = time.Now()
	clone := *ticket
	return &clone, nil
}

// captureDispatcher records published events for assertions.
type captureDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureDispatcher) Publish(_ context.Context, event events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (c *captureDispatcher) published() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event{}, c.events...)
}

func (c *captureDispatcher) lastOfType(eventType events.EventType) (events.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == eventType {
			return c.events[i], true
		}
	}
	return events.Event{}, false
}

// stubWorkflow fails or succeeds on demand.
type stubWorkflow struct {
	err        error
	dispatches int
}

func (s *stubWorkflow) Dispatch(context.Context, *domain.Ticket) error {
	s.dispatches++
	return s.err
}

func newTestService(repo repository.TicketRepository, wf *stubWorkflow, dispatcher events.Dispatcher) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo: repo,
		Workflow:   wf,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})
}

func identityFor(tenantID string) *auth.Identity {
	return &auth.Identity{UserID: "user-1", TenantID: tenantID, Role: domain.RoleUser}
}

func adminFor(tenantID string) *auth.Identity {
	return &auth.Identity{UserID: "admin-1", TenantID: tenantID, Role: domain.RoleAdmin}
}

func TestCreateTicketDefaultsAndDispatch(t *testing.T) {
	repo := newFakeTicketRepository()
	wf := &stubWorkflow{}
	capture := &captureDispatcher{}
	svc := newTestService(repo, wf, capture)

	ticket, err := svc.CreateTicket(context.Background(), identityFor("tenant-a"), TicketCreateInput{
		Title:       "  VPN broken  ",
		Description: "cannot connect since this morning",
	})
	require.NoError(t, err)

	require.Equal(t, "VPN broken", ticket.Title)
	require.Equal(t, "tenant-a", ticket.TenantID)
	require.Equal(t, "user-1", ticket.OwnerUserID)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	require.Equal(t, domain.TicketCategoryGeneral, ticket.Category)
	require.Equal(t, domain.WorkflowStatusInProgress, ticket.WorkflowStatus)
	require.Equal(t, 1, wf.dispatches)

	event, ok := capture.lastOfType(events.EventTicketCreated)
	require.True(t, ok)
	require.Equal(t, "tenant-a", event.TenantID)
	require.Equal(t, ticket.ID, event.TicketID)
}

func TestCreateTicketSurvivesEngineFailure(t *testing.T) {
	repo := newFakeTicketRepository()
	wf := &stubWorkflow{err: errors.New("engine down")}
	svc := newTestService(repo, wf, &captureDispatcher{})

	ticket, err := svc.CreateTicket(context.Background(), identityFor("tenant-a"), TicketCreateInput{
		Title:       "Slow dashboard",
		Description: "dashboard takes 30s to load",
	})
	require.NoError(t, err, "engine failure must not fail creation")
	require.Equal(t, domain.WorkflowStatusFailed, ticket.WorkflowStatus)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)
}

func TestCreateTicketValidation(t *testing.T) {
	svc := newTestService(newFakeTicketRepository(), &stubWorkflow{}, &captureDispatcher{})

	long := make([]byte, domain.TitleMaxLength+1)
	for i := range long {
		long[i] = 'a'
	}

	testCases := []struct {
		name  string
		input TicketCreateInput
	}{
		{name: "missing title", input: TicketCreateInput{Description: "desc"}},
		{name: "missing description", input: TicketCreateInput{Title: "title"}},
		{name: "title too long", input: TicketCreateInput{Title: string(long), Description: "desc"}},
		{name: "bad priority", input: TicketCreateInput{Title: "t", Description: "d", Priority: "Extreme"}},
		{name: "bad category", input: TicketCreateInput{Title: "t", Description: "d", Category: "Gossip"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTicket(context.Background(), identityFor("tenant-a"), tc.input)
			var domainErr *errorutil.DomainError
			require.ErrorAs(t, err, &domainErr)
			require.Equal(t, "VALIDATION_FAILED", domainErr.Code)
		})
	}
}

func TestGetTicketCrossTenantIsNotFound(t *testing.T) {
	repo := newFakeTicketRepository()
	svc := newTestService(repo, &stubWorkflow{}, &captureDispatcher{})

	created, err := svc.CreateTicket(context.Background(), identityFor("tenant-a"), TicketCreateInput{
		Title:       "Billing mismatch",
		Description: "invoice shows wrong amount",
	})
	require.NoError(t, err)

	// Owner tenant sees it.
	got, comments, err := svc.GetTicket(context.Background(), identityFor("tenant-a"), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Empty(t, comments)

	// Another tenant cannot tell it exists.
	_, _, err = svc.GetTicket(context.Background(), identityFor("tenant-b"), created.ID)
	require.True(t, errorutil.IsNotFound(err))
}

func TestListTicketsIsTenantScoped(t *testing.T) {
	repo := newFakeTicketRepository()
	svc := newTestService(repo, &stubWorkflow{}, &captureDispatcher{})

	for i := 0; i < 3; i++ {
		_, err := svc.CreateTicket(context.Background(), identityFor("tenant-a"), TicketCreateInput{
			Title:       fmt.Sprintf("a-%d", i),
			Description: "d",
		})
		require.NoError(t, err)
	}
	_, err := svc.CreateTicket(context.Background(), identityFor("tenant-b"), TicketCreateInput{
		Title:       "b-0",
		Description: "d",
	})
	require.NoError(t, err)

	tickets, total, err := svc.ListTickets(context.Background(), identityFor("tenant-a"), TicketListInput{})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	for _, ticket := range tickets {
		require.Equal(t, "tenant-a", ticket.TenantID)
	}
}

func TestUpdateTicketSetsResolvedAtOnce(t *testing.T) {
	repo := newFakeTicketRepository()
	svc := newTestService(repo, &stubWorkflow{}, &captureDispatcher{})
	identity := identityFor("tenant-a")

	created, err := svc.CreateTicket(context.Background(), identity, TicketCreateInput{
		Title:       "Password reset loop",
		Description: "reset email never arrives",
	})
	require.NoError(t, err)

	resolved := domain.TicketStatusResolved
	first, err := svc.UpdateTicket(context.Background(), identity, created.ID, TicketUpdateInput{Status: &resolved})
	require.NoError(t, err)
	require.NotNil(t, first.ResolvedAt)

	firstResolvedAt := *first.ResolvedAt
	time.Sleep(5 * time.Millisecond)

	// Resolving again must not move the timestamp.
	second, err := svc.UpdateTicket(context.Background(), identity, created.ID, TicketUpdateInput{Status: &resolved})
	require.NoError(t, err)
	require.NotNil(t, second.ResolvedAt)
	require.True(t, second.ResolvedAt.Equal(firstResolvedAt))

	// Leaving the resolved state keeps the original timestamp too.
	closed := domain.TicketStatusClosed
	third, err := svc.UpdateTicket(context.Background(), identity, created.ID, TicketUpdateInput{Status: &closed})
	require.NoError(t, err)
	require.NotNil(t, third.ResolvedAt)
	require.True(t, third.ResolvedAt.Equal(firstResolvedAt))
}

func TestUpdateTicketCrossTenantIsNotFound(t *testing.T) {
	repo := newFakeTicketRepository()
	capture := &captureDispatcher{}
	svc := newTestService(repo, &stubWorkflow{}, capture)

	created, err := svc.CreateTicket(context.Background(), identityFor("tenant-a"), TicketCreateInput{
		Title:       "Broken export",
		Description: "CSV export returns 500",
	})
	require.NoError(t, err)

	high := domain.TicketPriorityHigh
	_, err = svc.UpdateTicket(context.Background(), identityFor("tenant-b"), created.ID, TicketUpdateInput{Priority: &high})
	require.True(t, errorutil.IsNotFound(err))

	// No update event was published for the failed attempt.
	_, ok := capture.lastOfType(events.EventTicketUpdated)
	require.False(t, ok)
}

func TestDeleteTicketRequiresAdmin(t *testing.T) {
	repo := newFakeTicketRepository()
	capture := &captureDispatcher{}
	svc := newTestService(repo, &stubWorkflow{}, capture)

	created, err := svc.CreateTicket(context.Background(), identityFor("tenant-a"), TicketCreateInput{
		Title:       "Duplicate ticket",
		Description: "accidentally filed twice",
	})
	require.NoError(t, err)

	err = svc.DeleteTicket(context.Background(), identityFor("tenant-a"), created.ID)
	var domainErr *errorutil.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "FORBIDDEN", domainErr.Code)

	// Admin of another tenant still cannot reach it.
	err = svc.DeleteTicket(context.Background(), adminFor("tenant-b"), created.ID)
	require.True(t, errorutil.IsNotFound(err))

	err = svc.DeleteTicket(context.Background(), adminFor("tenant-a"), created.ID)
	require.NoError(t, err)

	event, ok := capture.lastOfType(events.EventTicketDeleted)
	require.True(t, ok)
	require.Equal(t, "tenant-a", event.TenantID)
}

func TestAddComment(t *testing.T) {
	repo := newFakeTicketRepository()
	capture := &captureDispatcher{}
	svc := newTestService(repo, &stubWorkflow{}, capture)
	identity := identityFor("tenant-a")

	created, err := svc.CreateTicket(context.Background(), identity, TicketCreateInput{
		Title:       "Login page typo",
		Description: "the word 'pasword' on the login page",
	})
	require.NoError(t, err)

	comment, err := svc.AddComment(context.Background(), identity, created.ID, "  fixed in staging  ")
	require.NoError(t, err)
	require.Equal(t, "fixed in staging", comment.Content)
	require.Equal(t, "user-1", comment.AuthorUserID)

	_, err = svc.AddComment(context.Background(), identity, created.ID, "   ")
	require.Error(t, err)

	// Comments are invisible across tenants.
	_, err = svc.AddComment(context.Background(), identityFor("tenant-b"), created.ID, "drive-by")
	require.True(t, errorutil.IsNotFound(err))

	event, ok := capture.lastOfType(events.EventTicketCommentAdded)
	require.True(t, ok)
	require.Equal(t, created.ID, event.TicketID)
}

func TestGetStats(t *testing.T) {
	repo := newFakeTicketRepository()
	svc := newTestService(repo, &stubWorkflow{}, &captureDispatcher{})
	identity := identityFor("tenant-a")

	for _, priority := range []domain.TicketPriority{
		domain.TicketPriorityLow, domain.TicketPriorityHigh, domain.TicketPriorityHigh,
	} {
		_, err := svc.CreateTicket(context.Background(), identity, TicketCreateInput{
			Title:       "t",
			Description: "d",
			Priority:    priority,
		})
		require.NoError(t, err)
	}
	_, err := svc.CreateTicket(context.Background(), identityFor("tenant-b"), TicketCreateInput{
		Title:       "other tenant",
		Description: "d",
	})
	require.NoError(t, err)

	stats, err := svc.GetStats(context.Background(), identity)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Total)
	require.Equal(t, int64(3), stats.ByStatus[string(domain.TicketStatusOpen)])
	require.Equal(t, int64(2), stats.ByPriority[string(domain.TicketPriorityHigh)])
	require.Equal(t, int64(1), stats.ByPriority[string(domain.TicketPriorityLow)])
}
