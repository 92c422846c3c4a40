package pipeline

import (
	"context"
	"fmt"

	"dryer-fleet/monitor/internal/alerts"
)

// AlertEvaluator reconciles a device's alerts as soon as fresh telemetry
// lands, instead of waiting for the next scheduled sweep. Reconciliation is
// idempotent, so overlap with the sweeps is safe.
type AlertEvaluator struct {
	ch         <-chan *AlertJob
	reconciler *alerts.Reconciler
}

func NewAlertEvaluator(
	ch <-chan *AlertJob,
	reconciler *alerts.Reconciler,
) *AlertEvaluator {
	return &AlertEvaluator{
		ch:         ch,
		reconciler: reconciler,
	}
}

func (e *AlertEvaluator) Run(ctx context.Context) {
	for {
		select {
		case job, ok := <-e.ch:
			if !ok {
				return
			}
			result := e.reconciler.Reconcile(ctx, job.Device)
			for _, errMsg := range result.Errors {
				fmt.Printf("Reconcile error for %s: %s\n", job.Device.DryerID, errMsg)
			}

		case <-ctx.Done():
			return
		}
	}
}
