/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the dayoff domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:
  Amounts are written as fixed two-decimal strings ("1.50"). Request bodies
  accept either a JSON number or a numeric string.

DATES:
  Calendar days are "2006-01-02". Timestamps are RFC3339.

SEE ALSO:
  - handlers.go: Uses these types
  - dayoff/types.go: Domain types
*/
package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/warp/compday/dayoff"
	"github.com/warp/compday/generic"
)

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expires_at"`
	User      UserDTO `json:"user"`
}

type UserDTO struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Role         generic.Role `json:"role"`
	DepartmentID string       `json:"department_id,omitempty"`
	SectionID    string       `json:"section_id,omitempty"`
	EmployeeNo   string       `json:"employee_no,omitempty"`
}

// =============================================================================
// CREDITS
// =============================================================================

// CreditDTO represents a compensatory credit in API responses.
type CreditDTO struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"owner_id"`
	Day            string         `json:"day"`
	Date           string         `json:"date"`
	Remark         string         `json:"remark"`
	Balance        generic.Amount `json:"balance"`
	InitialBalance generic.Amount `json:"initial_balance"`
	Consumed       bool           `json:"consumed"`
	CreatedAt      string         `json:"created_at"`
}

// CreateCreditRequest logs a worked day. Day defaults to the weekday of
// Date, Balance to 1.
type CreateCreditRequest struct {
	Day     string      `json:"day"`
	Date    string      `json:"date"`
	Remark  string      `json:"remark"`
	Balance json.Number `json:"balance,omitempty"`
}

// UpdateCreditRequest edits display fields; omitted fields are unchanged.
type UpdateCreditRequest struct {
	Day    *string `json:"day"`
	Date   *string `json:"date"`
	Remark *string `json:"remark"`
}

type BalanceDTO struct {
	EmployeeID string         `json:"employee_id"`
	Total      generic.Amount `json:"total"`
	Credits    []CreditDTO    `json:"credits"`
}

// =============================================================================
// DAY-OFF REQUESTS
// =============================================================================

// CreateDayOffRequest is the body of POST /api/requests/dayoff-request.
// Unlike responses, its keys are camelCase.
type CreateDayOffRequest struct {
	DaysRequested    json.Number `json:"daysRequested"`
	CompensationDay  string      `json:"compensationDay"`
	CompensationDate string      `json:"compensationDate"`
	Remark           string      `json:"remark"`
}

type CreateDayOffResponse struct {
	ID      string     `json:"id"`
	Request RequestDTO `json:"request"`
}

type AllocationPreviewRequest struct {
	DaysRequested json.Number `json:"daysRequested"`
}

// PlanDTO is an allocation plan that has not been committed.
type PlanDTO struct {
	EmployeeID  string              `json:"employee_id"`
	Requested   generic.Amount      `json:"requested"`
	Total       generic.Amount      `json:"total"`
	Allocations []dayoff.Allocation `json:"allocations"`
}

// RequestDTO represents a day-off request with its approval provenance.
type RequestDTO struct {
	ID                   string              `json:"id"`
	EmployeeID           string              `json:"employee_id"`
	TeamLeaderID         string              `json:"team_leader_id"`
	ManagerID            string              `json:"manager_id"`
	SectionID            string              `json:"section_id"`
	DepartmentID         string              `json:"department_id"`
	CompensationDay      string              `json:"compensation_day"`
	CompensationDate     string              `json:"compensation_date"`
	Remark               string              `json:"remark,omitempty"`
	RequestedBalance     generic.Amount      `json:"requested_balance"`
	ConsumedBalance      generic.Amount      `json:"consumed_balance"`
	Allocations          []dayoff.Allocation `json:"allocations"`
	Status               dayoff.Status       `json:"status"`
	TeamLeaderApprovedBy string              `json:"team_leader_approved_by,omitempty"`
	TeamLeaderApprovedAt string              `json:"team_leader_approved_at,omitempty"`
	ApprovedBy           string              `json:"approved_by,omitempty"`
	ApprovedAt           string              `json:"approved_at,omitempty"`
	CreatedAt            string              `json:"created_at"`
	UpdatedAt            string              `json:"updated_at"`
	AllowedActions       []dayoff.Action     `json:"allowed_actions,omitempty"`
}

// =============================================================================
// SCENARIOS & ADMIN
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type ReconcileResponse struct {
	Reconciled int `json:"reconciled"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toUserDTO(u *dayoff.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		DepartmentID: u.DepartmentID,
		SectionID:    u.SectionID,
		EmployeeNo:   u.EmployeeNo,
	}
}

func toCreditDTO(c dayoff.Credit) CreditDTO {
	return CreditDTO{
		ID:             c.ID,
		OwnerID:        c.OwnerID,
		Day:            c.Label,
		Date:           c.EarnedOn.String(),
		Remark:         c.Remark,
		Balance:        c.Balance,
		InitialBalance: c.InitialBalance,
		Consumed:       c.Consumed,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
	}
}

func toCreditDTOs(credits []dayoff.Credit) []CreditDTO {
	dtos := make([]CreditDTO, len(credits))
	for i, c := range credits {
		dtos[i] = toCreditDTO(c)
	}
	return dtos
}

func toPlanDTO(p *dayoff.Plan) PlanDTO {
	allocations := p.Allocations
	if allocations == nil {
		allocations = []dayoff.Allocation{}
	}
	return PlanDTO{
		EmployeeID:  p.OwnerID,
		Requested:   p.Requested,
		Total:       p.Total(),
		Allocations: allocations,
	}
}

func toRequestDTO(r dayoff.Request) RequestDTO {
	allocations := r.Allocations
	if allocations == nil {
		allocations = []dayoff.Allocation{}
	}
	return RequestDTO{
		ID:                   r.ID,
		EmployeeID:           r.EmployeeID,
		TeamLeaderID:         r.TeamLeaderID,
		ManagerID:            r.ManagerID,
		SectionID:            r.SectionID,
		DepartmentID:         r.DepartmentID,
		CompensationDay:      r.CompensationDay,
		CompensationDate:     r.CompensationDate.String(),
		Remark:               r.Remark,
		RequestedBalance:     r.RequestedBalance,
		ConsumedBalance:      r.ConsumedBalance,
		Allocations:          allocations,
		Status:               r.Status,
		TeamLeaderApprovedBy: r.TeamLeaderApprovedBy,
		TeamLeaderApprovedAt: formatOptionalTime(r.TeamLeaderApprovedAt),
		ApprovedBy:           r.ApprovedBy,
		ApprovedAt:           formatOptionalTime(r.ApprovedAt),
		CreatedAt:            r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            r.UpdatedAt.Format(time.RFC3339),
	}
}

// toRequestDTOs converts a listing, annotating what the actor may do next.
func toRequestDTOs(actor generic.Actor, requests []dayoff.Request) []RequestDTO {
	dtos := make([]RequestDTO, len(requests))
	for i := range requests {
		dtos[i] = toRequestDTO(requests[i])
		dtos[i].AllowedActions = dayoff.Allowed(actor, &requests[i])
	}
	return dtos
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

// parseAmountField returns zero for an omitted amount. Amounts above
// generic.MaxDays are refused before they reach the ledger.
func parseAmountField(field string, n json.Number) (generic.Amount, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return generic.Zero(), nil
	}
	amount, err := generic.ParseAmount(s)
	if err != nil {
		return generic.Amount{}, badRequest(field, "must be a number")
	}
	if amount.GreaterThan(generic.MaxDays) {
		return generic.Amount{}, badRequest(field, "must not exceed "+generic.MaxDays.String()+" days")
	}
	return amount, nil
}

func parseDateField(field, s string) (generic.TimePoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return generic.TimePoint{}, badRequest(field, "date is required")
	}
	tp, err := generic.ParseDate(s)
	if err != nil {
		return generic.TimePoint{}, badRequest(field, "expected YYYY-MM-DD")
	}
	return tp, nil
}
