/*
scheduler.go - Automated reconciliation scheduler

PURPOSE:
  Periodically releases day-off requests left in the provisional state by a
  crashed or interrupted create call. Their debits are restored and the
  request row removed (see dayoff/reconcile.go).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start, so a restart cleans up right away
  - Each run is bounded by the interval so a stuck store cannot pile up runs

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReconciliationScheduler(handler.Reconciler, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerReconcile endpoint (manual reconciliation)
  - dayoff/reconcile.go: Reconciler
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/compday/dayoff"
)

// ReconciliationScheduler runs the provisional-request reconciler on a ticker.
type ReconciliationScheduler struct {
	Reconciler    *dayoff.Reconciler
	CheckInterval time.Duration
	Enabled       bool

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(reconciler *dayoff.Reconciler, log zerolog.Logger) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Reconciler:    reconciler,
		CheckInterval: time.Minute,
		Enabled:       true,
		log:           log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled || rs.CheckInterval <= 0 {
		rs.log.Info().Msg("Scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run()

	rs.log.Info().Dur("interval", rs.CheckInterval).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for a running check to finish.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.log.Info().Msg("Scheduler stopped")
	}
}

func (rs *ReconciliationScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProcess()

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndProcess()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReconciliationScheduler) checkAndProcess() {
	ctx, cancel := context.WithTimeout(context.Background(), rs.CheckInterval)
	defer cancel()

	n, err := rs.Reconciler.Run(ctx)
	if err != nil {
		rs.log.Error().Err(err).Int("reconciled", n).Msg("Reconciliation failed")
		return
	}
	if n > 0 {
		rs.log.Info().Int("reconciled", n).Msg("Reconciliation completed")
	}
}
