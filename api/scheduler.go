/*
scheduler.go - Scheduled status refresh

PURPOSE:
  Derived statuses age as days pass: a Pending policy becomes Due Soon and
  then Overdue without anyone touching it. The scheduler re-runs the
  classifier over every non-overridden policy on a cron schedule so stored
  statuses stay current.

DESIGN:
  - robfig/cron drives the schedule (standard 5-field spec, UTC)
  - Runs once immediately on Start
  - Each run is recorded by the service in run history

CONFIGURATION:
  - Spec:    cron expression (default: "0 2 * * *", 02:00 UTC daily)
  - Enabled: whether the scheduler is active (default: true)

USAGE:
  scheduler := NewStatusScheduler(svc)
  if err := scheduler.Start(); err != nil {
      log.Fatal(err)
  }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: POST /api/runs/refresh (manual refresh)
  - ilit/service.go: RefreshStatuses
*/
package api

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/ilit-engine/ilit"
)

// DefaultRefreshSpec runs the refresh at 02:00 UTC every day.
const DefaultRefreshSpec = "0 2 * * *"

// StatusScheduler refreshes derived statuses on a schedule.
type StatusScheduler struct {
	Service *ilit.Service
	Spec    string
	Enabled bool

	cron    *cron.Cron
	entryID cron.EntryID
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewStatusScheduler creates a scheduler with the default spec.
func NewStatusScheduler(svc *ilit.Service) *StatusScheduler {
	return &StatusScheduler{
		Service: svc,
		Spec:    DefaultRefreshSpec,
		Enabled: true,
	}
}

// Start registers the job and starts the cron loop. An invalid spec is an error.
func (ss *StatusScheduler) Start() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return nil
	}
	if ss.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	id, err := c.AddFunc(ss.Spec, func() { ss.refresh() })
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", ss.Spec, err)
	}
	ss.cron = c
	ss.entryID = id
	c.Start()

	// Run immediately on start
	ss.wg.Add(1)
	go func() {
		defer ss.wg.Done()
		ss.refresh()
	}()

	log.Printf("[Scheduler] Started with schedule %q", ss.Spec)
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (ss *StatusScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.cron != nil {
		<-ss.cron.Stop().Done()
		ss.wg.Wait()
		ss.cron = nil
		log.Println("[Scheduler] Stopped")
	}
}

// RunNow triggers an immediate refresh (for testing/admin).
func (ss *StatusScheduler) RunNow(ctx context.Context) (ilit.RefreshResult, error) {
	return ss.Service.RefreshStatuses(ctx)
}

// NextRun returns when the next scheduled refresh will occur, or the zero
// time when the scheduler is not running.
func (ss *StatusScheduler) NextRun() time.Time {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.cron == nil {
		return time.Time{}
	}
	return ss.cron.Entry(ss.entryID).Next
}

func (ss *StatusScheduler) refresh() {
	log.Printf("[Scheduler] Refreshing statuses at %v", time.Now().UTC().Format(time.RFC3339))

	result, err := ss.RunNow(context.Background())
	if err != nil {
		log.Printf("[Scheduler] Refresh failed: %v", err)
		return
	}
	log.Printf("[Scheduler] Completed: %d checked, %d changed, %d failed",
		result.Checked, result.Changed, len(result.Failures))
}
