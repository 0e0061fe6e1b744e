/*
service.go - Day-off request lifecycle

PURPOSE:
  Orchestrates the workflow core. Every operation takes an explicit
  generic.Actor; nothing is read from ambient session state.

REQUEST FLOW:
  ┌──────────────────────────────────────────────────────────────────┐
  │                                                                  │
  │  resolve      allocate     save         debit        flip to     │
  │  approvers ─▶ (pure)  ─▶  provisional ─▶ credits ─▶  pending     │
  │                                                                  │
  │                  all inside Store.WithTx                         │
  │                                                                  │
  │  pending ─▶ team_leader_approved ─▶ approved ─▶ remove consumed  │
  │     └──────────────┴──────▶ rejected ─▶ release allocations      │
  │                                                                  │
  └──────────────────────────────────────────────────────────────────┘

ERRORS:
  Failures before the first write (validation, approvers, balance) are
  returned as-is: nothing happened. Failures after the first write come
  back as *generic.CommitError: writes were attempted and rolled back.

SEE ALSO:
  - allocation.go: Distribute/Apply/Release
  - workflow.go: Transition table
  - reconcile.go: Cleans up provisional requests
*/
package dayoff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/compday/generic"
)

// Service handles credits and day-off requests.
type Service struct {
	Store     TxStore
	Directory Directory

	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

func NewService(store TxStore, directory Directory, log zerolog.Logger) *Service {
	return &Service{
		Store:     store,
		Directory: directory,
		log:       log.With().Str("component", "dayoff").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// WithClock replaces the service clock. Tests use it to pin timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// =============================================================================
// CREDITS
// =============================================================================

// CreditInput creates a credit. Label defaults to the weekday of EarnedOn
// and Balance to one day.
type CreditInput struct {
	Label    string
	EarnedOn generic.TimePoint
	Remark   string
	Balance  generic.Amount
}

// CreditUpdate edits display fields. Nil fields are left unchanged.
type CreditUpdate struct {
	Label    *string
	EarnedOn *generic.TimePoint
	Remark   *string
}

// CreateCredit logs a worked day for the actor.
func (s *Service) CreateCredit(ctx context.Context, actor generic.Actor, in CreditInput) (*Credit, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if in.EarnedOn.IsZero() {
		return nil, &generic.ValidationError{Field: "date", Message: "valid date is required"}
	}
	remark := strings.TrimSpace(in.Remark)
	if remark == "" {
		return nil, &generic.ValidationError{Field: "remark", Message: "remark is required"}
	}
	balance := in.Balance.Round()
	if balance.IsZero() {
		balance = generic.NewAmountFromInt(1)
	}
	if balance.IsNegative() {
		return nil, &generic.ValidationError{Field: "balance", Message: "must be greater than zero"}
	}
	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = in.EarnedOn.DayName()
	}

	credit := Credit{
		ID:             s.newID(),
		OwnerID:        actor.ID,
		EarnedOn:       in.EarnedOn,
		Label:          label,
		Remark:         remark,
		Balance:        balance,
		InitialBalance: balance,
		CreatedAt:      s.now(),
	}
	if err := s.Store.SaveCredit(ctx, credit); err != nil {
		return nil, fmt.Errorf("failed to save credit: %w", err)
	}

	s.log.Info().
		Str("credit_id", credit.ID).
		Str("owner_id", credit.OwnerID).
		Str("earned_on", credit.EarnedOn.String()).
		Str("balance", credit.Balance.String()).
		Msg("Credit created")
	return &credit, nil
}

// UpdateCredit edits a credit's label, date or remark. Owners, managers and
// admins may edit.
func (s *Service) UpdateCredit(ctx context.Context, actor generic.Actor, id string, in CreditUpdate) (*Credit, error) {
	credit, err := s.manageableCredit(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if in.Label != nil {
		if label := strings.TrimSpace(*in.Label); label != "" {
			credit.Label = label
		}
	}
	if in.Remark != nil {
		remark := strings.TrimSpace(*in.Remark)
		if remark == "" {
			return nil, &generic.ValidationError{Field: "remark", Message: "remark is required"}
		}
		credit.Remark = remark
	}
	if in.EarnedOn != nil {
		if in.EarnedOn.IsZero() {
			return nil, &generic.ValidationError{Field: "date", Message: "valid date is required"}
		}
		credit.EarnedOn = *in.EarnedOn
	}

	if err := s.Store.SaveCredit(ctx, *credit); err != nil {
		return nil, fmt.Errorf("failed to update credit: %w", err)
	}
	return credit, nil
}

// DeleteCredit removes a credit no request has drawn from.
func (s *Service) DeleteCredit(ctx context.Context, actor generic.Actor, id string) error {
	credit, err := s.manageableCredit(ctx, actor, id)
	if err != nil {
		return err
	}
	if credit.Consumed || !credit.Untouched() {
		return fmt.Errorf("credit %s: %w", id, generic.ErrCreditInUse)
	}

	if err := s.Store.DeleteCredit(ctx, id); err != nil {
		return fmt.Errorf("failed to delete credit: %w", err)
	}
	s.log.Info().Str("credit_id", id).Str("actor_id", actor.ID).Msg("Credit deleted")
	return nil
}

func (s *Service) manageableCredit(ctx context.Context, actor generic.Actor, id string) (*Credit, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	credit, err := s.Store.GetCredit(ctx, id)
	if err != nil {
		return nil, err
	}
	if credit.OwnerID != actor.ID && !actor.Is(generic.RoleManager) && !actor.Is(generic.RoleAdmin) {
		return nil, fmt.Errorf("credit %s: %w", id, generic.ErrNotAuthorized)
	}
	return credit, nil
}

// AvailableCredits lists an owner's available credits and their total.
// ownerID defaults to the actor; other owners need manager or admin role.
func (s *Service) AvailableCredits(ctx context.Context, actor generic.Actor, ownerID string) ([]Credit, generic.Amount, error) {
	if err := actor.Validate(); err != nil {
		return nil, generic.Zero(), err
	}
	if ownerID == "" {
		ownerID = actor.ID
	}
	if ownerID != actor.ID && !actor.Is(generic.RoleManager) && !actor.Is(generic.RoleAdmin) {
		return nil, generic.Zero(), fmt.Errorf("credits of %s: %w", ownerID, generic.ErrNotAuthorized)
	}

	credits, err := NewLedger(s.Store).ListAvailable(ctx, ownerID)
	if err != nil {
		return nil, generic.Zero(), err
	}
	return credits, totalBalance(credits), nil
}

// Preview computes the plan a request would use, without committing.
func (s *Service) Preview(ctx context.Context, actor generic.Actor, days generic.Amount) (*Plan, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	return NewAllocator(NewLedger(s.Store)).Allocate(ctx, actor.ID, days)
}

// =============================================================================
// REQUEST CREATION
// =============================================================================

// CreateRequestInput is what the employee submits.
type CreateRequestInput struct {
	DaysRequested    generic.Amount
	CompensationDay  string
	CompensationDate generic.TimePoint
	Remark           string
}

func (in CreateRequestInput) validate() error {
	if !in.DaysRequested.IsPositive() {
		return &generic.ValidationError{Field: "daysRequested", Message: "must be greater than zero"}
	}
	if in.CompensationDate.IsZero() {
		return &generic.ValidationError{Field: "compensationDate", Message: "valid date is required"}
	}
	return nil
}

// CreateRequest converts the actor's credit into a pending day-off request.
func (s *Service) CreateRequest(ctx context.Context, actor generic.Actor, in CreateRequestInput) (*Request, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	approvers, err := s.Directory.ResolveApprovers(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	day := strings.TrimSpace(in.CompensationDay)
	if day == "" {
		day = in.CompensationDate.DayName()
	}

	now := s.now()
	req := &Request{
		ID:               s.newID(),
		EmployeeID:       actor.ID,
		TeamLeaderID:     approvers.TeamLeaderID,
		ManagerID:        approvers.ManagerID,
		SectionID:        approvers.SectionID,
		DepartmentID:     approvers.DepartmentID,
		CompensationDay:  day,
		CompensationDate: in.CompensationDate,
		Remark:           strings.TrimSpace(in.Remark),
		RequestedBalance: in.DaysRequested.Round(),
		Status:           StatusProvisional,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.Store.WithTx(ctx, func(tx Store) error {
		ledger := NewLedger(tx)

		snapshot, err := ledger.ListAvailable(ctx, actor.ID)
		if err != nil {
			return err
		}
		plan, err := Distribute(actor.ID, snapshot, req.RequestedBalance)
		if err != nil {
			return err
		}
		if err := plan.Validate(snapshot); err != nil {
			return err
		}
		req.Allocations = plan.Allocations
		req.ConsumedBalance = plan.Total()

		// From here on every failure is a commit failure.
		if err := tx.SaveRequest(ctx, *req); err != nil {
			return &generic.CommitError{RequestID: req.ID, Cause: err}
		}

		applied, err := Apply(ctx, ledger, plan.Allocations, func(n int) error {
			req.DebitsApplied = n
			return tx.SaveRequest(ctx, *req)
		})
		if err != nil {
			if relErr := Release(ctx, ledger, plan.Allocations[:len(applied)]); relErr != nil {
				err = errors.Join(err, relErr)
			}
			return &generic.CommitError{RequestID: req.ID, Applied: applied, Cause: err}
		}

		if err := req.CheckConsumed(); err != nil {
			return &generic.CommitError{RequestID: req.ID, Applied: applied, Cause: err}
		}
		req.Status = StatusPending
		if err := tx.SaveRequest(ctx, *req); err != nil {
			return &generic.CommitError{RequestID: req.ID, Applied: applied, Cause: err}
		}
		return nil
	})
	if err != nil {
		var commitErr *generic.CommitError
		if errors.As(err, &commitErr) {
			s.log.Error().Err(err).
				Str("request_id", req.ID).
				Str("employee_id", actor.ID).
				Strs("applied", commitErr.Applied).
				Msg("Day-off request commit failed")
		}
		return nil, err
	}

	s.log.Info().
		Str("request_id", req.ID).
		Str("employee_id", req.EmployeeID).
		Str("days", req.RequestedBalance.String()).
		Int("credits", len(req.Allocations)).
		Str("team_leader_id", req.TeamLeaderID).
		Str("manager_id", req.ManagerID).
		Msg("Day-off request created")
	return req, nil
}

// =============================================================================
// APPROVAL WORKFLOW
// =============================================================================

// Approve advances a request one approval stage.
func (s *Service) Approve(ctx context.Context, actor generic.Actor, requestID string) (*Request, error) {
	return s.transition(ctx, actor, requestID, ActionApprove)
}

// Reject moves a request to rejected and releases its credit.
func (s *Service) Reject(ctx context.Context, actor generic.Actor, requestID string) (*Request, error) {
	return s.transition(ctx, actor, requestID, ActionReject)
}

func (s *Service) transition(ctx context.Context, actor generic.Actor, requestID string, action Action) (*Request, error) {
	var out *Request
	err := s.Store.WithTx(ctx, func(tx Store) error {
		r, err := getVisible(ctx, tx, requestID)
		if err != nil {
			return err
		}

		t, err := Next(actor, action, r)
		if err != nil {
			return err
		}
		t.apply(r, actor, s.now())

		ledger := NewLedger(tx)
		switch t.To {
		case StatusApproved:
			if err := s.settle(ctx, tx, ledger, r); err != nil {
				return err
			}
		case StatusRejected:
			if err := Release(ctx, ledger, r.Allocations); err != nil {
				return err
			}
		}

		if err := tx.SaveRequest(ctx, *r); err != nil {
			return fmt.Errorf("failed to save request: %w", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("request_id", out.ID).
		Str("actor_id", actor.ID).
		Str("role", actor.Role.String()).
		Str("action", string(action)).
		Str("status", string(out.Status)).
		Msg("Day-off request transitioned")
	return out, nil
}

// settle removes the credits a finally approved request used up. A credit
// is removed once it is consumed and no other open request drew from it;
// partially consumed credits keep their reduced balance.
func (s *Service) settle(ctx context.Context, tx Store, ledger *Ledger, r *Request) error {
	open, err := tx.ListRequests(ctx, RequestFilter{EmployeeID: r.EmployeeID, Statuses: OpenStatuses})
	if err != nil {
		return fmt.Errorf("failed to list open requests: %w", err)
	}

	for _, a := range r.Allocations {
		credit, err := ledger.Get(ctx, a.CreditID)
		if generic.IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		if !credit.Consumed || referencedByOther(open, r.ID, a.CreditID) {
			continue
		}
		if err := ledger.Remove(ctx, a.CreditID); err != nil {
			return fmt.Errorf("failed to remove credit %s: %w", a.CreditID, err)
		}
	}
	return nil
}

func referencedByOther(requests []Request, requestID, creditID string) bool {
	for i := range requests {
		if requests[i].ID != requestID && requests[i].References(creditID) {
			return true
		}
	}
	return false
}

// Delete removes a terminal request. Admins may delete any; managers only
// the ones assigned to them.
func (s *Service) Delete(ctx context.Context, actor generic.Actor, requestID string) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	err := s.Store.WithTx(ctx, func(tx Store) error {
		r, err := getVisible(ctx, tx, requestID)
		if err != nil {
			return err
		}
		allowed := actor.Is(generic.RoleAdmin) || (actor.Is(generic.RoleManager) && r.ManagerID == actor.ID)
		if !allowed {
			return &generic.TransitionError{Actor: actor, Action: "delete", From: string(r.Status), Forbidden: true, Reason: "only admins or the assigned manager may delete"}
		}
		if !r.Status.IsTerminal() {
			return &generic.TransitionError{Actor: actor, Action: "delete", From: string(r.Status), Reason: "only approved or rejected requests can be deleted"}
		}
		return tx.DeleteRequest(ctx, requestID)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("request_id", requestID).Str("actor_id", actor.ID).Msg("Day-off request deleted")
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a request the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor generic.Actor, requestID string) (*Request, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	r, err := getVisible(ctx, s.Store, requestID)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(ctx, actor, r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, generic.ErrNotAuthorized)
	}
	return r, nil
}

func (s *Service) canView(ctx context.Context, actor generic.Actor, r *Request) (bool, error) {
	switch {
	case actor.Is(generic.RoleAdmin):
		return true, nil
	case actor.ID == r.EmployeeID || actor.ID == r.TeamLeaderID || actor.ID == r.ManagerID:
		return true, nil
	case actor.Is(generic.RoleManager):
		u, err := s.Directory.GetUser(ctx, actor.ID)
		if err != nil {
			return false, err
		}
		return u.DepartmentID != "" && u.DepartmentID == r.DepartmentID, nil
	case actor.Is(generic.RoleTeamLeader):
		sections, err := s.Directory.SectionsSupervisedBy(ctx, actor.ID)
		if err != nil {
			return false, err
		}
		for _, sec := range sections {
			if sec.ID == r.SectionID {
				return true, nil
			}
		}
	}
	return false, nil
}

// ApprovalQueue lists the requests waiting on the actor.
func (s *Service) ApprovalQueue(ctx context.Context, actor generic.Actor) ([]Request, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var filter RequestFilter
	switch actor.Role {
	case generic.RoleTeamLeader:
		filter = RequestFilter{TeamLeaderID: actor.ID, Statuses: []Status{StatusPending}}
	case generic.RoleManager:
		filter = RequestFilter{ManagerID: actor.ID, Statuses: []Status{StatusTeamLeaderApproved}}
	case generic.RoleAdmin:
		filter = RequestFilter{Statuses: []Status{StatusPending, StatusTeamLeaderApproved}}
	default:
		return nil, fmt.Errorf("approval queue: %w", generic.ErrNotAuthorized)
	}
	return s.Store.ListRequests(ctx, filter)
}

// MyRequests lists the actor's own requests.
func (s *Service) MyRequests(ctx context.Context, actor generic.Actor) ([]Request, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	return s.Store.ListRequests(ctx, RequestFilter{
		EmployeeID: actor.ID,
		Statuses:   []Status{StatusPending, StatusTeamLeaderApproved, StatusApproved, StatusRejected},
	})
}

// Archive lists approved requests scoped by role: team leaders see their
// sections, managers their department, admins everything and employees
// their own.
func (s *Service) Archive(ctx context.Context, actor generic.Actor) ([]Request, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	filter := RequestFilter{Statuses: []Status{StatusApproved}}

	switch actor.Role {
	case generic.RoleAdmin:
	case generic.RoleManager:
		u, err := s.Directory.GetUser(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if u.DepartmentID == "" {
			return []Request{}, nil
		}
		filter.DepartmentID = u.DepartmentID
	case generic.RoleTeamLeader:
		sections, err := s.Directory.SectionsSupervisedBy(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if len(sections) == 0 {
			return []Request{}, nil
		}
		for _, sec := range sections {
			filter.SectionIDs = append(filter.SectionIDs, sec.ID)
		}
	default:
		filter.EmployeeID = actor.ID
	}
	return s.Store.ListRequests(ctx, filter)
}

// getVisible hides provisional requests behind not-found.
func getVisible(ctx context.Context, store RequestStore, id string) (*Request, error) {
	r, err := store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusProvisional {
		return nil, fmt.Errorf("request %s: %w", id, generic.ErrRequestNotFound)
	}
	return r, nil
}
