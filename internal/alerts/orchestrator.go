package alerts

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dryer-fleet/monitor/internal/domain"
	"dryer-fleet/monitor/internal/metrics"
)

// Fleet selects candidate devices for a sweep. Decommissioned devices are
// excluded by every listing.
type Fleet interface {
	ListDevices(ctx context.Context) ([]domain.Device, error)
	ListStaleDevices(ctx context.Context, olderThan time.Time) ([]domain.Device, error)
	ListOverheatedDevices(ctx context.Context, since time.Time, minTemp float64) ([]domain.Device, error)
}

// Orchestrator runs the reconciler across device subsets. The three sweeps
// are selection filters over the same reconcile step and may overlap freely —
// reconciliation is idempotent.
type Orchestrator struct {
	fleet      Fleet
	reconciler *Reconciler

	workers    int
	timeout    time.Duration
	staleAfter time.Duration
	hotWindow  time.Duration
	hotTemp    float64
}

func NewOrchestrator(
	fleet Fleet,
	reconciler *Reconciler,
	workers int,
	timeout time.Duration,
	staleAfter time.Duration,
	hotWindow time.Duration,
	hotTemp float64,
) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		fleet:      fleet,
		reconciler: reconciler,
		workers:    workers,
		timeout:    timeout,
		staleAfter: staleAfter,
		hotWindow:  hotWindow,
		hotTemp:    hotTemp,
	}
}

// SweepAll reconciles every non-decommissioned device.
func (o *Orchestrator) SweepAll(ctx context.Context) domain.SweepResult {
	devices, err := o.fleet.ListDevices(ctx)
	return o.run(ctx, devices, err, "list devices")
}

// SweepStale reconciles devices that have not communicated recently.
func (o *Orchestrator) SweepStale(ctx context.Context) domain.SweepResult {
	cutoff := time.Now().Add(-o.staleAfter)
	devices, err := o.fleet.ListStaleDevices(ctx, cutoff)
	return o.run(ctx, devices, err, "list stale devices")
}

// SweepOverheated reconciles devices with a recent chamber reading above the
// critical temperature.
func (o *Orchestrator) SweepOverheated(ctx context.Context) domain.SweepResult {
	since := time.Now().Add(-o.hotWindow)
	devices, err := o.fleet.ListOverheatedDevices(ctx, since, o.hotTemp)
	return o.run(ctx, devices, err, "list overheated devices")
}

func (o *Orchestrator) run(ctx context.Context, devices []domain.Device, listErr error, what string) domain.SweepResult {
	var result domain.SweepResult
	if listErr != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", what, listErr))
		metrics.SweepFailures.Add(1)
		return result
	}
	if len(devices) == 0 {
		return result
	}

	sweepCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		sweepCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(sweepCtx)
	g.SetLimit(o.workers)

	for i := range devices {
		device := devices[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				// Deadline hit: unfinished devices are retried by the next
				// scheduled sweep.
				return nil
			}
			r := o.reconciler.Reconcile(gctx, &device)
			mu.Lock()
			result.Add(r)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	if len(result.Errors) > 0 {
		metrics.SweepFailures.Add(1)
	}
	return result
}

// RunScheduled drives the three sweeps on fixed intervals until the context
// is cancelled. The cron endpoint and fresh-telemetry reconciles may overlap
// with these; that is safe.
func (o *Orchestrator) RunScheduled(ctx context.Context, fullEvery, staleEvery, hotEvery time.Duration) {
	fullTicker := time.NewTicker(fullEvery)
	staleTicker := time.NewTicker(staleEvery)
	hotTicker := time.NewTicker(hotEvery)
	defer fullTicker.Stop()
	defer staleTicker.Stop()
	defer hotTicker.Stop()

	for {
		select {
		case <-fullTicker.C:
			logSweep("full", o.SweepAll(ctx))
		case <-staleTicker.C:
			logSweep("stale-communication", o.SweepStale(ctx))
		case <-hotTicker.C:
			logSweep("acute-temperature", o.SweepOverheated(ctx))
		case <-ctx.Done():
			return
		}
	}
}

func logSweep(name string, r domain.SweepResult) {
	if r.DevicesChecked == 0 && len(r.Errors) == 0 {
		return
	}
	log.Printf("sweep %s: devices=%d created=%d resolved=%d errors=%d",
		name, r.DevicesChecked, r.Created, r.Resolved, len(r.Errors))
	for _, e := range r.Errors {
		log.Printf("sweep %s error: %s", name, e)
	}
}
