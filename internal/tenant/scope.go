package tenant

import (
	"errors"

	"github.com/flowbit/ticket-service/internal/domain"
	"github.com/flowbit/ticket-service/pkg/errorutil"
)

// Scope is the mandatory tenant filter threaded through every store call.
// It can only be built from a caller's authenticated tenant, so isolation
// is enforced structurally rather than by filtering outgoing payloads.
type Scope struct {
	tenantID string
}

// NewScope builds a scope for a caller's tenant.
func NewScope(tenantID string) (Scope, error) {
	if tenantID == "" {
		return Scope{}, errors.New("tenant id required")
	}
	return Scope{tenantID: tenantID}, nil
}

// TenantID returns the tenant this scope is bound to.
func (s Scope) TenantID() string {
	return s.tenantID
}

// Stamp overwrites the ticket's tenant with the scope's tenant, discarding
// any client-supplied value. Prevents tenant spoofing via payload injection.
func (s Scope) Stamp(t *domain.Ticket) {
	t.TenantID = s.tenantID
}

// Guard verifies a looked-up ticket belongs to the scope's tenant. A
// mismatch is reported as not-found, never forbidden, so a caller cannot
// probe for the existence of another tenant's resources.
func (s Scope) Guard(t *domain.Ticket) (*domain.Ticket, error) {
	if t == nil || t.TenantID != s.tenantID {
		return nil, errorutil.NewNotFound("ticket")
	}
	return t, nil
}

// Filter drops any ticket whose tenant mismatches the scope. The store
// already scopes its queries; this is defense in depth against a query
// construction bug.
func (s Scope) Filter(tickets []domain.Ticket) []domain.Ticket {
	filtered := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.TenantID == s.tenantID {
			filtered = append(filtered, t)
		}
	}
	return filtered
}
