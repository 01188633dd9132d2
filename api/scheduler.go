/*
scheduler.go - Automated monthly fee generation

PURPOSE:
  Keeps every student's fee horizon funded without manual intervention.
  Checks periodically whether the current month's generation has run;
  when it has not, runs the batch and records a billing run.

DESIGN:
  - Background goroutine with a configurable check interval
  - billing_runs makes the monthly job idempotent: once a completed run
    exists for the current month, later ticks are no-ops
  - A failed batch is recorded with status "failed" and retried on the
    next tick
  - Runs immediately on Start, so a server that was down on the 1st
    catches up as soon as it boots

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewBillingScheduler(store, engine)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - billing/generator.go: the batch it triggers
  - handlers.go: GenerateFees endpoint (manual trigger)
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clubworks/club-backoffice/billing"
	"github.com/clubworks/club-backoffice/club"
)

// BillingScheduler runs the monthly fee generation in the background.
type BillingScheduler struct {
	Store         club.TxStore
	Engine        *billing.Engine
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBillingScheduler creates a scheduler with default settings.
func NewBillingScheduler(store club.TxStore, engine *billing.Engine) *BillingScheduler {
	return &BillingScheduler{
		Store:         store,
		Engine:        engine,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (bs *BillingScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	bs.ticker = time.NewTicker(bs.CheckInterval)
	bs.wg.Add(1)

	go bs.run()

	log.Printf("[Scheduler] Started with check interval: %v", bs.CheckInterval)
}

// Stop stops the scheduler.
func (bs *BillingScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (bs *BillingScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.checkAndGenerate()

	for {
		select {
		case <-bs.ticker.C:
			bs.checkAndGenerate()
		case <-bs.stop:
			return
		}
	}
}

// checkAndGenerate runs the monthly batch unless it already completed
// for the current month.
func (bs *BillingScheduler) checkAndGenerate() {
	ctx := context.Background()
	now := time.Now().UTC()
	current := club.BillingMonthOf(now)

	done, err := bs.Store.HasCompletedRun(ctx, current)
	if err != nil {
		log.Printf("[Scheduler] Failed to check billing runs: %v", err)
		return
	}
	if done {
		return
	}

	log.Printf("[Scheduler] Generating fees for %s", current)
	started := time.Now().UTC()

	run := club.BillingRun{
		ID:        uuid.NewString(),
		Month:     current.Month,
		Year:      current.Year,
		StartedAt: started,
	}

	result, err := bs.Engine.EnsureUpcomingFees(ctx, now)
	if err != nil {
		run.Status = club.RunStatusFailed
		run.Error = err.Error()
		log.Printf("[Scheduler] Generation failed: %v", err)
	} else {
		run.Status = club.RunStatusCompleted
		run.StudentsProcessed = result.StudentsProcessed
		run.FeesCreated = result.FeesCreated
		run.CompletedAt = time.Now().UTC()
		log.Printf("[Scheduler] Generated %d fees for %d students (%d failures)",
			result.FeesCreated, result.StudentsProcessed, len(result.Failures))
		for _, f := range result.Failures {
			log.Printf("[Scheduler] Student %d skipped: %v", f.StudentID, f.Err)
		}
	}

	if err := bs.Store.CreateBillingRun(ctx, &run); err != nil {
		log.Printf("[Scheduler] Failed to record billing run: %v", err)
	}
}
