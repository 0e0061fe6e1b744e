package dayoff

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultProvisionalGrace is how long a provisional request may exist
// before the reconciler considers its commit abandoned.
const DefaultProvisionalGrace = 5 * time.Minute

// Reconciler releases the debits of requests stuck in provisional state
// (process crash between the first debit and the pending flip) and deletes
// them.
type Reconciler struct {
	Store TxStore
	Grace time.Duration

	log zerolog.Logger
	now func() time.Time
}

func NewReconciler(store TxStore, grace time.Duration, log zerolog.Logger) *Reconciler {
	if grace <= 0 {
		grace = DefaultProvisionalGrace
	}
	return &Reconciler{
		Store: store,
		Grace: grace,
		log:   log.With().Str("component", "reconciler").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Run reconciles every stale provisional request and returns how many were
// cleaned up. A failure on one request does not stop the others.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.Grace)
	stale, err := r.Store.ListRequests(ctx, RequestFilter{
		Statuses:      []Status{StatusProvisional},
		CreatedBefore: &cutoff,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list provisional requests: %w", err)
	}

	var (
		cleaned int
		first   error
	)
	for i := range stale {
		req := stale[i]
		if err := r.reconcile(ctx, req.ID); err != nil {
			r.log.Error().Err(err).Str("request_id", req.ID).Msg("Failed to reconcile provisional request")
			if first == nil {
				first = err
			}
			continue
		}
		cleaned++
		r.log.Warn().
			Str("request_id", req.ID).
			Str("employee_id", req.EmployeeID).
			Int("debits_released", req.DebitsApplied).
			Msg("Reconciled abandoned provisional request")
	}
	return cleaned, first
}

func (r *Reconciler) reconcile(ctx context.Context, requestID string) error {
	return r.Store.WithTx(ctx, func(tx Store) error {
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		// Flipped to pending since the listing.
		if req.Status != StatusProvisional {
			return nil
		}

		applied := req.DebitsApplied
		if applied > len(req.Allocations) {
			applied = len(req.Allocations)
		}
		if err := Release(ctx, NewLedger(tx), req.Allocations[:applied]); err != nil {
			return err
		}
		return tx.DeleteRequest(ctx, requestID)
	})
}
