/*
store.go - Persistence interfaces for credits, requests and the directory

PURPOSE:
  Defines the interface between the workflow core and the database.
  Transition logic never issues queries itself; it goes through these
  interfaces so the same code runs on SQLite, PostgreSQL or memory.

KEY INTERFACES:
  CreditStore:  Credit rows (the ledger's backing table)
  RequestStore: Day-off request rows
  TxStore:      Atomic multi-document writes (WithTx)
  Directory:    User/section/department lookups (read-only)

ATOMICITY:
  Creating a request debits N credits and writes one request. Stores only
  guarantee single-row atomicity on their own, so every multi-step write
  in the service runs inside WithTx. If fn returns an error, every write
  made through the Store handed to fn is rolled back.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (default)
  - store/postgres/postgres.go: PostgreSQL via pgx
  - dayoff/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Credit Ledger built on CreditStore
  - service.go: Uses TxStore and Directory
*/
package dayoff

import (
	"context"
	"slices"
	"time"
)

// CreditStore persists credits.
type CreditStore interface {
	// SaveCredit inserts or replaces a credit.
	SaveCredit(ctx context.Context, c Credit) error

	// GetCredit returns generic.ErrCreditNotFound for unknown ids.
	GetCredit(ctx context.Context, id string) (*Credit, error)

	// ListCredits returns an owner's credits ordered by EarnedOn, CreatedAt, ID.
	// Consumed credits are included only when includeConsumed is set.
	ListCredits(ctx context.Context, ownerID string, includeConsumed bool) ([]Credit, error)

	// DeleteCredit permanently removes a credit.
	DeleteCredit(ctx context.Context, id string) error
}

// RequestFilter selects requests. Empty fields do not filter.
type RequestFilter struct {
	EmployeeID    string
	TeamLeaderID  string
	ManagerID     string
	DepartmentID  string
	SectionIDs    []string
	Statuses      []Status
	CreatedBefore *time.Time
}

// RequestStore persists day-off requests.
type RequestStore interface {
	// SaveRequest inserts or replaces a request, including its allocations.
	SaveRequest(ctx context.Context, r Request) error

	// GetRequest returns generic.ErrRequestNotFound for unknown ids.
	GetRequest(ctx context.Context, id string) (*Request, error)

	// ListRequests returns matching requests, newest first.
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error)

	DeleteRequest(ctx context.Context, id string) error
}

// Store is everything the workflow core persists.
type Store interface {
	CreditStore
	RequestStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Directory resolves users and their approval chain.
type Directory interface {
	// ResolveApprovers returns generic.ErrApproverNotConfigured when the
	// employee has no section, or the section lacks a supervisor or manager.
	ResolveApprovers(ctx context.Context, employeeID string) (Approvers, error)

	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// SectionsSupervisedBy lists sections whose team leader is userID.
	SectionsSupervisedBy(ctx context.Context, userID string) ([]Section, error)
}

// Match reports whether r passes the filter. Stores that cannot push the
// filter into a query use it directly.
func (f RequestFilter) Match(r *Request) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.TeamLeaderID != "" && r.TeamLeaderID != f.TeamLeaderID {
		return false
	}
	if f.ManagerID != "" && r.ManagerID != f.ManagerID {
		return false
	}
	if f.DepartmentID != "" && r.DepartmentID != f.DepartmentID {
		return false
	}
	if len(f.SectionIDs) > 0 && !slices.Contains(f.SectionIDs, r.SectionID) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if f.CreatedBefore != nil && !r.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}
