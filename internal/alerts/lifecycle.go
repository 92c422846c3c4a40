package alerts

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"dryer-fleet/monitor/internal/domain"
	"dryer-fleet/monitor/internal/metrics"
)

// Store is the narrow storage surface the lifecycle needs. Both the Postgres
// store and the in-memory fake satisfy it.
type Store interface {
	LatestReading(ctx context.Context, deviceID string) (*domain.SensorReading, error)
	ActiveAlerts(ctx context.Context, deviceID string) ([]domain.Alert, error)
	InsertAlert(ctx context.Context, alert *domain.Alert) error
	ResolveAlert(ctx context.Context, alertID string, at time.Time) error
	CountActiveAlerts(ctx context.Context, deviceID string) (int, error)
	SetActiveAlertCount(ctx context.Context, deviceID string, count int) error
}

// Notifier receives newly created alerts. Delivery is best-effort and must not
// block reconciliation.
type Notifier interface {
	AlertCreated(ctx context.Context, device *domain.Device, alert *domain.Alert)
}

// Reconciler diffs the currently-fired rules against a device's open alerts
// and applies the minimal set of creates and resolves. It is the sole writer
// of alert rows for a device: a per-device mutex guarantees the at-most-one
// active alert per (device, type) invariant under concurrent sweeps.
type Reconciler struct {
	store     Store
	rules     []domain.AlertRule
	notifiers []Notifier
	now       func() time.Time

	locks sync.Map // device ID -> *sync.Mutex
}

func NewReconciler(store Store, rules []domain.AlertRule, notifiers ...Notifier) *Reconciler {
	return &Reconciler{
		store:     store,
		rules:     rules,
		notifiers: notifiers,
		now:       time.Now,
	}
}

func (r *Reconciler) lock(deviceID string) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(deviceID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Reconcile runs one pass for a single device. Idempotent: a second call with
// no new telemetry creates and resolves nothing. Storage failures on one alert
// are recorded and do not abort the remaining steps.
func (r *Reconciler) Reconcile(ctx context.Context, device *domain.Device) domain.ReconcileResult {
	mu := r.lock(device.ID)
	mu.Lock()
	defer mu.Unlock()

	var result domain.ReconcileResult

	reading, err := r.store.LatestReading(ctx, device.ID)
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("latest reading for %s: %v", device.DryerID, err))
		// Device-only rules (offline, maintenance) still evaluate below.
	}

	input := domain.NewRuleInput(device, reading, r.now())
	fired := domain.Evaluate(r.rules, input)

	open, err := r.store.ActiveAlerts(ctx, device.ID)
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("active alerts for %s: %v", device.DryerID, err))
		return result
	}

	openTypes := make(map[domain.AlertType]bool, len(open))
	for _, a := range open {
		openTypes[a.Type] = true
	}
	firedTypes := make(map[domain.AlertType]bool, len(fired))
	for _, f := range fired {
		firedTypes[f.Rule.Type] = true
	}

	mutated := false

	for _, f := range fired {
		if openTypes[f.Rule.Type] {
			// Already open: content stays frozen at creation time.
			continue
		}
		alert := &domain.Alert{
			DeviceID:       device.ID,
			Type:           f.Rule.Type,
			Severity:       f.Rule.Severity,
			Status:         domain.AlertStatusActive,
			Message:        domain.FormatAlertMessage(f.Rule, f.CurrentValue, f.Threshold),
			ThresholdValue: f.Threshold,
			CurrentValue:   f.CurrentValue,
			CreatedAt:      r.now(),
		}
		if err := r.store.InsertAlert(ctx, alert); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("create %s alert for %s: %v", f.Rule.Type, device.DryerID, err))
			continue
		}
		result.Created++
		mutated = true
		metrics.AlertsCreated.Add(1)
		for _, n := range r.notifiers {
			n.AlertCreated(ctx, device, alert)
		}
	}

	for _, a := range open {
		if firedTypes[a.Type] {
			continue
		}
		if err := r.store.ResolveAlert(ctx, a.ID, r.now()); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("resolve %s alert for %s: %v", a.Type, device.DryerID, err))
			continue
		}
		result.Resolved++
		mutated = true
		metrics.AlertsResolved.Add(1)
	}

	if mutated {
		r.recount(ctx, device)
	}

	return result
}

// recount rewrites the device's denormalized open-alert counter. Failures are
// logged only: the next sweep self-heals the counter.
func (r *Reconciler) recount(ctx context.Context, device *domain.Device) {
	count, err := r.store.CountActiveAlerts(ctx, device.ID)
	if err != nil {
		log.Printf("alert recount for %s failed: %v", device.DryerID, err)
		return
	}
	if err := r.store.SetActiveAlertCount(ctx, device.ID, count); err != nil {
		log.Printf("alert count update for %s failed: %v", device.DryerID, err)
		return
	}
	device.ActiveAlertsCount = count
}
