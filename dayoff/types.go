// Package dayoff implements compensatory day-off management: the credit
// ledger, the allocation engine, the day-off request aggregate and its
// two-stage approval workflow.
package dayoff

import (
	"fmt"
	"time"

	"github.com/warp/compday/generic"
)

// =============================================================================
// CREDIT - A compensatory working day
// =============================================================================

// Credit is a fractional-balance grant earned for working an extra day.
//
// INVARIANTS:
//   - Balance >= 0
//   - Consumed == Balance.IsZero()
//   - Balance <= InitialBalance
type Credit struct {
	ID             string
	OwnerID        string
	EarnedOn       generic.TimePoint
	Label          string // day name, display only
	Remark         string
	Balance        generic.Amount
	InitialBalance generic.Amount
	Consumed       bool
	CreatedAt      time.Time
}

// Untouched reports whether no allocation has drawn from the credit.
func (c Credit) Untouched() bool {
	return c.Balance.Equal(c.InitialBalance)
}

// =============================================================================
// REQUEST - A day-off request and its approval provenance
// =============================================================================

type Status string

const (
	// StatusProvisional marks a request whose debits are being applied. It is
	// never listed and is either flipped to pending or reconciled away.
	StatusProvisional        Status = "provisional"
	StatusPending            Status = "pending"
	StatusTeamLeaderApproved Status = "team_leader_approved"
	StatusApproved           Status = "approved"
	StatusRejected           Status = "rejected"
)

// OpenStatuses are the statuses whose allocations still hold credit.
var OpenStatuses = []Status{StatusProvisional, StatusPending, StatusTeamLeaderApproved}

func (s Status) IsTerminal() bool { return s == StatusApproved || s == StatusRejected }

// Allocation is one line of an allocation plan: how much was debited from a
// credit and what the credit's balance was left at.
type Allocation struct {
	CreditID         string         `json:"credit_id"`
	Amount           generic.Amount `json:"amount"`
	ResultingBalance generic.Amount `json:"resulting_balance"`
}

// Request is a day-off request. Allocations are fixed at creation.
type Request struct {
	ID           string
	EmployeeID   string
	TeamLeaderID string
	ManagerID    string
	SectionID    string
	DepartmentID string

	// The day the employee takes off (not the credited working day)
	CompensationDay  string
	CompensationDate generic.TimePoint
	Remark           string

	RequestedBalance generic.Amount
	ConsumedBalance  generic.Amount
	Allocations      []Allocation

	// DebitsApplied counts allocations already debited while provisional.
	DebitsApplied int

	Status Status

	// Approval provenance
	TeamLeaderApprovedBy string
	TeamLeaderApprovedAt *time.Time
	ApprovedBy           string // also records the rejecting actor
	ApprovedAt           *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllocatedTotal sums the allocation amounts.
func (r *Request) AllocatedTotal() generic.Amount {
	total := generic.Zero()
	for _, a := range r.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// CheckConsumed fails unless ConsumedBalance equals the allocated total.
func (r *Request) CheckConsumed() error {
	if total := r.AllocatedTotal(); !r.ConsumedBalance.Equal(total) {
		return fmt.Errorf("request %s consumes %s but allocates %s", r.ID, r.ConsumedBalance, total)
	}
	return nil
}

// References reports whether the request drew from the credit.
func (r *Request) References(creditID string) bool {
	for _, a := range r.Allocations {
		if a.CreditID == creditID {
			return true
		}
	}
	return false
}

// =============================================================================
// DIRECTORY ENTITIES - Consumed, not owned
// =============================================================================

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         generic.Role
	DepartmentID string
	SectionID    string
	EmployeeNo   string
}

type Department struct {
	ID   string
	Name string
}

// Section links a group of employees to their approvers. SupervisorID is the
// team leader; either approver may be empty until an admin assigns one.
type Section struct {
	ID           string
	Name         string
	DepartmentID string
	SupervisorID string
	ManagerID    string
}

// Approvers is the resolved approval chain for an employee.
type Approvers struct {
	SectionID    string
	DepartmentID string
	TeamLeaderID string
	ManagerID    string
}
