/*
ledger.go - Credit Ledger

PURPOSE:
  The Ledger is the only code path that changes a credit's balance.
  It wraps a CreditStore and enforces the balance invariants on every
  mutation:

    - Balance never goes below zero
    - Consumed is true exactly when Balance is zero
    - Amounts are rounded to generic.Precision on every write

MUTATIONS:
  Debit:   allocation commit (request creation)
  Restore: reversal of a debit (rejection, rollback, reconciliation)
  Remove:  permanent deletion after final approval

  Every call persists immediately. The ledger does not batch or roll back
  across credits; callers that debit several credits either run inside
  TxStore.WithTx or undo with Release (see allocation.go).

SEE ALSO:
  - allocation.go: Computes and applies allocation plans
  - store.go: CreditStore
*/
package dayoff

import (
	"context"
	"fmt"

	"github.com/warp/compday/generic"
)

// Ledger is the Credit Ledger for all employees.
type Ledger struct {
	Store CreditStore
}

func NewLedger(store CreditStore) *Ledger {
	return &Ledger{Store: store}
}

// Get returns one credit.
func (l *Ledger) Get(ctx context.Context, creditID string) (*Credit, error) {
	return l.Store.GetCredit(ctx, creditID)
}

// ListAvailable returns the owner's unconsumed credits, oldest first.
func (l *Ledger) ListAvailable(ctx context.Context, ownerID string) ([]Credit, error) {
	credits, err := l.Store.ListCredits(ctx, ownerID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list credits: %w", err)
	}
	available := credits[:0]
	for _, c := range credits {
		if !c.Consumed && c.Balance.IsPositive() {
			available = append(available, c)
		}
	}
	sortCredits(available)
	return available, nil
}

// TotalAvailable sums the balances of the owner's available credits.
func (l *Ledger) TotalAvailable(ctx context.Context, ownerID string) (generic.Amount, error) {
	credits, err := l.ListAvailable(ctx, ownerID)
	if err != nil {
		return generic.Zero(), err
	}
	return totalBalance(credits), nil
}

// Debit subtracts amount from a credit and persists the result.
func (l *Ledger) Debit(ctx context.Context, creditID string, amount generic.Amount) (*Credit, error) {
	amount = amount.Round()
	if !amount.IsPositive() {
		return nil, &generic.ValidationError{Field: "amount", Message: "debit must be positive"}
	}

	credit, err := l.Store.GetCredit(ctx, creditID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(credit.Balance) {
		return nil, &generic.InsufficientBalanceError{
			OwnerID:   credit.OwnerID,
			Available: credit.Balance,
			Requested: amount,
			Shortfall: amount.Sub(credit.Balance),
		}
	}

	credit.Balance = credit.Balance.Sub(amount).ClampZero()
	credit.Consumed = credit.Balance.IsZero()

	if err := l.Store.SaveCredit(ctx, *credit); err != nil {
		return nil, fmt.Errorf("failed to debit credit %s: %w", creditID, err)
	}
	return credit, nil
}

// Restore adds amount back to a credit. It refuses to push the balance past
// the credit's initial balance, which would mean a double restore.
func (l *Ledger) Restore(ctx context.Context, creditID string, amount generic.Amount) (*Credit, error) {
	amount = amount.Round()
	if !amount.IsPositive() {
		return nil, &generic.ValidationError{Field: "amount", Message: "restore must be positive"}
	}

	credit, err := l.Store.GetCredit(ctx, creditID)
	if err != nil {
		return nil, err
	}
	restored := credit.Balance.Add(amount)
	if restored.GreaterThan(credit.InitialBalance) {
		return nil, &generic.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("restoring %s to credit %s exceeds its initial balance %s", amount, creditID, credit.InitialBalance),
		}
	}

	credit.Balance = restored
	credit.Consumed = false

	if err := l.Store.SaveCredit(ctx, *credit); err != nil {
		return nil, fmt.Errorf("failed to restore credit %s: %w", creditID, err)
	}
	return credit, nil
}

// Remove permanently deletes a credit.
func (l *Ledger) Remove(ctx context.Context, creditID string) error {
	if _, err := l.Store.GetCredit(ctx, creditID); err != nil {
		return err
	}
	return l.Store.DeleteCredit(ctx, creditID)
}

func totalBalance(credits []Credit) generic.Amount {
	total := generic.Zero()
	for _, c := range credits {
		total = total.Add(c.Balance)
	}
	return total
}
