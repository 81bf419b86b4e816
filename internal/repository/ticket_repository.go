package repository

import (
	"fmt"
	"strings"

	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowbit/ticket-service/internal/domain"
	"github.com/flowbit/ticket-service/internal/tenant"
)

// TicketFilter captures list parameters. Page and Limit are normalized to
// page >= 1 and limit > 0.
type TicketFilter struct {
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
	Category *domain.TicketCategory
	Page     int
	Limit    int
}

// TicketPatch describes a partial user-driven update. Nil fields are left
// untouched. WorkflowStatus is deliberately absent: it moves only through
// workflow transitions.
type TicketPatch struct {
	Title            *string
	Description      *string
	Status           *domain.TicketStatus
	Priority         *domain.TicketPriority
	Category         *domain.TicketCategory
	Resolution       *string
	AssignedToUserID *string
	Tags             []string
}

// WorkflowPatch describes a workflow-driven transition.
type WorkflowPatch struct {
	Status         *domain.TicketStatus
	WorkflowStatus *domain.WorkflowStatus
	Resolution     *string
}

// GroupCount is one aggregation bucket.
type GroupCount struct {
	Key   string
	Count int64
}

// TicketRepository encapsulates ticket persistence. Every tenant-facing
// operation takes a tenant.Scope whose id lands in the WHERE clause; this is
// the single enforcement point for isolation. Only the workflow methods are
// unscoped, because callbacks authenticate via the shared secret and carry
// no trustworthy tenant.
type TicketRepository interface {
	Create(ctx context.Context, scope tenant.Scope, ticket *domain.Ticket) error
	GetByID(ctx context.Context, scope tenant.Scope, id string) (*domain.Ticket, error)
	List(ctx context.Context, scope tenant.Scope, filter TicketFilter) ([]domain.Ticket, int, error)
	Update(ctx context.Context, scope tenant.Scope, id string, patch TicketPatch) (*domain.Ticket, error)
	Delete(ctx context.Context, scope tenant.Scope, id string) (bool, error)
	AppendComment(ctx context.Context, scope tenant.Scope, ticketID string, comment *domain.Comment) error
	ListComments(ctx context.Context, scope tenant.Scope, ticketID string) ([]domain.Comment, error)
	AggregateCounts(ctx context.Context, scope tenant.Scope, field string) ([]GroupCount, error)
	GetForWorkflow(ctx context.Context, id string) (*domain.Ticket, error)
	ApplyWorkflowTransition(ctx context.Context, id string, patch WorkflowPatch) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, tenant_id, owner_user_id, assigned_to_user_id, title, description,
               status, priority, category, workflow_status, resolution, tags,
               created_at, updated_at, resolved_at`

func (r *ticketRepository) Create(ctx context.Context, scope tenant.Scope, ticket *domain.Ticket) error {
	scope.Stamp(ticket)
	const query = `
        INSERT INTO tickets (tenant_id, owner_user_id, assigned_to_user_id, title, description, status, priority, category, workflow_status, resolution, tags)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TenantID,
		ticket.OwnerUserID,
		ticket.AssignedToUserID,
		ticket.Title,
		ticket.Description,
		string(ticket.Status),
		string(ticket.Priority),
		string(ticket.Category),
		string(ticket.WorkflowStatus),
		ticket.Resolution,
		ticket.Tags,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, scope tenant.Scope, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 AND tenant_id=$2`, ticketColumns)
	return r.fetchSingle(ctx, query, id, scope.TenantID())
}

func (r *ticketRepository) GetForWorkflow(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&ticket.ID,
		&ticket.TenantID,
		&ticket.OwnerUserID,
		&ticket.AssignedToUserID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Category,
		&ticket.WorkflowStatus,
		&ticket.Resolution,
		&ticket.Tags,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, scope tenant.Scope, filter TicketFilter) ([]domain.Ticket, int, error) {
	clauses := []string{"tenant_id=$1"}
	args := []any{scope.TenantID()}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, string(*filter.Priority))
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, string(*filter.Category))
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}

	where := strings.Join(clauses, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM tickets WHERE %s`, where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) Update(ctx context.Context, scope tenant.Scope, id string, patch TicketPatch) (*domain.Ticket, error) {
	// resolved_at is set in the same statement that flips status to
	// Resolved, and only when it is still unset. It is never cleared.
	query := fmt.Sprintf(`
        UPDATE tickets SET
            title = COALESCE($1, title),
            description = COALESCE($2, description),
            status = COALESCE($3, status),
            priority = COALESCE($4, priority),
            category = COALESCE($5, category),
            resolution = COALESCE($6, resolution),
            assigned_to_user_id = COALESCE($7::uuid, assigned_to_user_id),
            tags = COALESCE($8::text[], tags),
            resolved_at = CASE
                WHEN COALESCE($3, status) = 'Resolved' AND resolved_at IS NULL THEN NOW()
                ELSE resolved_at
            END,
            updated_at = NOW()
        WHERE id=$9 AND tenant_id=$10
        RETURNING %s`, ticketColumns)

	return r.fetchSingle(ctx, query,
		patch.Title,
		patch.Description,
		statusArg(patch.Status),
		priorityArg(patch.Priority),
		categoryArg(patch.Category),
		patch.Resolution,
		patch.AssignedToUserID,
		patch.Tags,
		id,
		scope.TenantID(),
	)
}

func (r *ticketRepository) ApplyWorkflowTransition(ctx context.Context, id string, patch WorkflowPatch) (*domain.Ticket, error) {
	query := fmt.Sprintf(`
        UPDATE tickets SET
            status = COALESCE($1, status),
            workflow_status = COALESCE($2, workflow_status),
            resolution = COALESCE($3, resolution),
            resolved_at = CASE
                WHEN COALESCE($1, status) = 'Resolved' AND resolved_at IS NULL THEN NOW()
                ELSE resolved_at
            END,
            updated_at = NOW()
        WHERE id=$4
        RETURNING %s`, ticketColumns)

	var workflowStatus *string
	if patch.WorkflowStatus != nil {
		s := string(*patch.WorkflowStatus)
		workflowStatus = &s
	}
	return r.fetchSingle(ctx, query,
		statusArg(patch.Status),
		workflowStatus,
		patch.Resolution,
		id,
	)
}

func (r *ticketRepository) Delete(ctx context.Context, scope tenant.Scope, id string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1 AND tenant_id=$2`, id, scope.TenantID())
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) AppendComment(ctx context.Context, scope tenant.Scope, ticketID string, comment *domain.Comment) error {
	// The tenant clause lives in the target CTE: a cross-tenant ticket id
	// selects nothing and the insert reports ErrNoRows.
	const query = `
        WITH target AS (
            SELECT id FROM tickets WHERE id=$1 AND tenant_id=$2
        ), touched AS (
            UPDATE tickets SET updated_at=NOW() WHERE id IN (SELECT id FROM target)
        )
        INSERT INTO ticket_comments (ticket_id, author_user_id, content)
        SELECT id, $3, $4 FROM target
        RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, query,
		ticketID,
		scope.TenantID(),
		comment.AuthorUserID,
		comment.Content,
	).Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return err
	}
	comment.TicketID = ticketID
	return nil
}

func (r *ticketRepository) ListComments(ctx context.Context, scope tenant.Scope, ticketID string) ([]domain.Comment, error) {
	const query = `
        SELECT c.id, c.ticket_id, c.author_user_id, c.content, c.created_at
        FROM ticket_comments c
        JOIN tickets t ON t.id = c.ticket_id
        WHERE c.ticket_id=$1 AND t.tenant_id=$2
        ORDER BY c.created_at ASC, c.id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID, scope.TenantID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.AuthorUserID,
			&comment.Content,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}

var aggregateColumns = map[string]string{
	"status":   "status",
	"priority": "priority",
	"category": "category",
}

func (r *ticketRepository) AggregateCounts(ctx context.Context, scope tenant.Scope, field string) ([]GroupCount, error) {
	column, ok := aggregateColumns[field]
	if !ok {
		return nil, fmt.Errorf("unsupported aggregation field %q", field)
	}
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM tickets WHERE tenant_id=$1 GROUP BY %s ORDER BY %s ASC`,
		column, column, column)
	rows, err := r.pool.Query(ctx, query, scope.TenantID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GroupCount
	for rows.Next() {
		var group GroupCount
		if err := rows.Scan(&group.Key, &group.Count); err != nil {
			return nil, err
		}
		result = append(result, group)
	}
	return result, rows.Err()
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.TenantID,
			&ticket.OwnerUserID,
			&ticket.AssignedToUserID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Status,
			&ticket.Priority,
			&ticket.Category,
			&ticket.WorkflowStatus,
			&ticket.Resolution,
			&ticket.Tags,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.ResolvedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func statusArg(s *domain.TicketStatus) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func priorityArg(p *domain.TicketPriority) *string {
	if p == nil {
		return nil
	}
	v := string(*p)
	return &v
}

func categoryArg(c *domain.TicketCategory) *string {
	if c == nil {
		return nil
	}
	v := string(*c)
	return &v
}
