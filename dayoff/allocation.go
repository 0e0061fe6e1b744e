/*
allocation.go - Allocation Engine

PURPOSE:
  Decides how much of a day-off request is debited from each credit.
  Credits are consumed oldest first (FIFO by EarnedOn), the same way the
  priority distributor drains carryover before standard balance.

ALGORITHM:
  remaining := requested
  for each available credit, oldest first:
      take := min(credit.Balance, remaining)
      plan += (credit, take, credit.Balance - take)
      remaining -= take
      stop when remaining == 0
  remaining > 0  ->  InsufficientBalanceError (no partial requests)

  All arithmetic is rounded to generic.Precision at every step.

EXAMPLE:
  credits: [1.5 (Mon), 1.5 (Wed)]   request: 2
  plan:    [(Mon, 1.5, 0), (Wed, 0.5, 1.0)]

PURITY:
  Allocate and Distribute never write. Apply performs the debits in plan
  order; Release is the reversal loop used when a commit cannot finish
  and when a request is rejected.

SEE ALSO:
  - ledger.go: Debit/Restore
  - service.go: CreateRequest commits a plan inside WithTx
*/
package dayoff

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/compday/generic"
)

// =============================================================================
// PLAN
// =============================================================================

// Plan is an ordered per-credit deduction plan.
type Plan struct {
	OwnerID     string
	Requested   generic.Amount
	Allocations []Allocation
}

// Total sums the planned debits.
func (p *Plan) Total() generic.Amount {
	total := generic.Zero()
	for _, a := range p.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// Validate checks every line of the plan against a ledger snapshot. It is
// run before the first debit so a stale plan never half-applies.
func (p *Plan) Validate(snapshot []Credit) error {
	byID := make(map[string]Credit, len(snapshot))
	for _, c := range snapshot {
		byID[c.ID] = c
	}

	for _, a := range p.Allocations {
		c, ok := byID[a.CreditID]
		if !ok || c.Consumed {
			return fmt.Errorf("credit %s no longer available: %w", a.CreditID, generic.ErrInsufficientBalance)
		}
		if c.OwnerID != p.OwnerID {
			return &generic.ValidationError{Field: "allocation", Message: fmt.Sprintf("credit %s belongs to another employee", c.ID)}
		}
		if a.Amount.GreaterThan(c.Balance) {
			return &generic.InsufficientBalanceError{
				OwnerID:   p.OwnerID,
				Available: c.Balance,
				Requested: a.Amount,
				Shortfall: a.Amount.Sub(c.Balance),
			}
		}
		if !c.Balance.Sub(a.Amount).Equal(a.ResultingBalance) {
			return &generic.ValidationError{Field: "allocation", Message: fmt.Sprintf("credit %s changed since the plan was computed", c.ID)}
		}
	}

	if !p.Total().Equal(p.Requested) {
		return &generic.ValidationError{Field: "allocation", Message: "plan does not cover the requested days"}
	}
	return nil
}

// =============================================================================
// ALLOCATOR
// =============================================================================

// Allocator computes plans from the ledger's current state.
type Allocator struct {
	Ledger *Ledger
}

func NewAllocator(ledger *Ledger) *Allocator {
	return &Allocator{Ledger: ledger}
}

// Allocate reads the owner's available credits and distributes the request
// across them. It does not mutate the ledger.
func (a *Allocator) Allocate(ctx context.Context, ownerID string, daysRequested generic.Amount) (*Plan, error) {
	if !daysRequested.IsPositive() {
		return nil, &generic.ValidationError{Field: "daysRequested", Message: "must be greater than zero"}
	}

	credits, err := a.Ledger.ListAvailable(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return Distribute(ownerID, credits, daysRequested)
}

// Distribute is the pure allocation step over a credit snapshot.
func Distribute(ownerID string, credits []Credit, daysRequested generic.Amount) (*Plan, error) {
	requested := daysRequested.Round()
	if !requested.IsPositive() {
		return nil, &generic.ValidationError{Field: "daysRequested", Message: "must be greater than zero"}
	}

	ordered := make([]Credit, 0, len(credits))
	for _, c := range credits {
		if c.Consumed || !c.Balance.IsPositive() {
			continue
		}
		ordered = append(ordered, c)
	}
	sortCredits(ordered)

	plan := &Plan{OwnerID: ownerID, Requested: requested}
	remaining := requested

	for _, c := range ordered {
		if remaining.IsZero() {
			break
		}

		take := remaining.Min(c.Balance)
		plan.Allocations = append(plan.Allocations, Allocation{
			CreditID:         c.ID,
			Amount:           take,
			ResultingBalance: c.Balance.Sub(take).ClampZero(),
		})
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return nil, &generic.InsufficientBalanceError{
			OwnerID:   ownerID,
			Available: totalBalance(ordered),
			Requested: requested,
			Shortfall: remaining,
		}
	}
	return plan, nil
}

// =============================================================================
// COMMIT / REVERSAL
// =============================================================================

// Apply debits every planned allocation in order. progress, when set, is
// called after each successful debit with the number applied so far. It
// returns the ids of the credits debited, also on error.
func Apply(ctx context.Context, ledger *Ledger, allocations []Allocation, progress func(applied int) error) ([]string, error) {
	applied := make([]string, 0, len(allocations))
	for _, a := range allocations {
		if _, err := ledger.Debit(ctx, a.CreditID, a.Amount); err != nil {
			return applied, err
		}
		applied = append(applied, a.CreditID)
		if progress != nil {
			if err := progress(len(applied)); err != nil {
				return applied, err
			}
		}
	}
	return applied, nil
}

// Release restores allocations in reverse order. It keeps going after a
// failure and returns the first error.
func Release(ctx context.Context, ledger *Ledger, allocations []Allocation) error {
	var first error
	for i := len(allocations) - 1; i >= 0; i-- {
		a := allocations[i]
		if _, err := ledger.Restore(ctx, a.CreditID, a.Amount); err != nil && first == nil {
			first = fmt.Errorf("failed to release credit %s: %w", a.CreditID, err)
		}
	}
	return first
}

// sortCredits orders credits oldest first; ties fall back to creation time
// and id so the order is stable across stores.
func sortCredits(credits []Credit) {
	sort.SliceStable(credits, func(i, j int) bool {
		a, b := credits[i], credits[j]
		if !a.EarnedOn.Equal(b.EarnedOn) {
			return a.EarnedOn.Before(b.EarnedOn)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
