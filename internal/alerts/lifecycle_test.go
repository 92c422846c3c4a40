package alerts_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dryer-fleet/monitor/internal/alerts"
	"dryer-fleet/monitor/internal/domain"
	"dryer-fleet/monitor/internal/store"
)

func fp(v float64) *float64 { return &v }

func newDevice(s *store.MemoryStore, dryerID string) *domain.Device {
	d := &domain.Device{DryerID: dryerID, Status: domain.DeviceActive}
	s.PutDevice(d)
	return d
}

func putReading(t *testing.T, s *store.MemoryStore, deviceID string, chamberTemp, batteryLevel float64) {
	t.Helper()
	r := &domain.SensorReading{
		DeviceID:     deviceID,
		Timestamp:    time.Now(),
		ChamberTemp:  fp(chamberTemp),
		BatteryLevel: fp(batteryLevel),
	}
	if err := s.InsertReading(context.Background(), r); err != nil {
		t.Fatalf("insert reading: %v", err)
	}
}

func touch(t *testing.T, s *store.MemoryStore, deviceID string) {
	t.Helper()
	if err := s.TouchLastCommunication(context.Background(), deviceID, time.Now()); err != nil {
		t.Fatalf("touch: %v", err)
	}
}

func activeByType(s *store.MemoryStore, deviceID string) map[domain.AlertType]int {
	out := make(map[domain.AlertType]int)
	for _, a := range s.AllAlerts(deviceID) {
		if a.Status == domain.AlertStatusActive {
			out[a.Type]++
		}
	}
	return out
}

func TestReconcileCreatesAlert(t *testing.T) {
	s := store.NewMemoryStore()
	d := newDevice(s, "DRY-001")
	touch(t, s, d.ID)
	putReading(t, s, d.ID, 85, 50)

	r := alerts.NewReconciler(s, domain.Catalog(domain.DefaultThresholds()))
	res := r.Reconcile(context.Background(), d)

	if res.Created != 1 || res.Resolved != 0 || len(res.Errors) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	active := activeByType(s, d.ID)
	if len(active) != 1 || active[domain.AlertHighTemperature] != 1 {
		t.Fatalf("expected one high_temperature alert, got %v", active)
	}

	a := s.AllAlerts(d.ID)[0]
	if a.CurrentValue == nil || *a.CurrentValue != 85 {
		t.Errorf("CurrentValue = %v, want 85", a.CurrentValue)
	}
	if a.ThresholdValue == nil || *a.ThresholdValue != 80 {
		t.Errorf("ThresholdValue = %v, want 80", a.ThresholdValue)
	}
	if d.ActiveAlertsCount != 1 {
		t.Errorf("ActiveAlertsCount = %d, want 1", d.ActiveAlertsCount)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	s := store.NewMemoryStore()
	d := newDevice(s, "DRY-001")
	touch(t, s, d.ID)
	putReading(t, s, d.ID, 85, 50)

	r := alerts.NewReconciler(s, domain.Catalog(domain.DefaultThresholds()))
	r.Reconcile(context.Background(), d)

	res := r.Reconcile(context.Background(), d)
	if res.Created != 0 || res.Resolved != 0 {
		t.Fatalf("second pass with same telemetry mutated: %+v", res)
	}
	if got := activeByType(s, d.ID)[domain.AlertHighTemperature]; got != 1 {
		t.Fatalf("expected exactly one active high_temperature alert, got %d", got)
	}
}

func TestReconcileResolvesCleared(t *testing.T) {
	s := store.NewMemoryStore()
	d := newDevice(s, "DRY-001")
	touch(t, s, d.ID)
	putReading(t, s, d.ID, 85, 50)

	r := alerts.NewReconciler(s, domain.Catalog(domain.DefaultThresholds()))
	r.Reconcile(context.Background(), d)

	// Temperature drops back into range.
	putReading(t, s, d.ID, 50, 50)
	res := r.Reconcile(context.Background(), d)

	if res.Created != 0 || res.Resolved != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	all := s.AllAlerts(d.ID)
	if len(all) != 1 || all[0].Status != domain.AlertStatusResolved || all[0].ResolvedAt == nil {
		t.Fatalf("expected a resolved alert with timestamp, got %+v", all)
	}
	if d.ActiveAlertsCount != 0 {
		t.Errorf("ActiveAlertsCount = %d, want 0", d.ActiveAlertsCount)
	}
}

func TestReconcileConcurrentDedup(t *testing.T) {
	s := store.NewMemoryStore()
	d := newDevice(s, "DRY-001")
	touch(t, s, d.ID)
	putReading(t, s, d.ID, 85, 5) // high_temperature + low_battery

	r := alerts.NewReconciler(s, domain.Catalog(domain.DefaultThresholds()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			copied := *d
			r.Reconcile(context.Background(), &copied)
		}()
	}
	wg.Wait()

	active := activeByType(s, d.ID)
	if active[domain.AlertHighTemperature] != 1 || active[domain.AlertLowBattery] != 1 {
		t.Fatalf("concurrent sweeps duplicated alerts: %v", active)
	}
}

func TestReconcileLeavesAcknowledgedAlone(t *testing.T) {
	s := store.NewMemoryStore()
	d := newDevice(s, "DRY-001")
	touch(t, s, d.ID)
	putReading(t, s, d.ID, 85, 50)

	r := alerts.NewReconciler(s, domain.Catalog(domain.DefaultThresholds()))
	r.Reconcile(context.Background(), d)

	ackID := s.AllAlerts(d.ID)[0].ID
	s.SetAlertStatus(ackID, domain.AlertStatusAcknowledged)

	// Temperature back to normal: the acknowledged row is not in the open set
	// and must not be force-resolved.
	putReading(t, s, d.ID, 50, 50)
	res := r.Reconcile(context.Background(), d)
	if res.Resolved != 0 {
		t.Fatalf("resolved an acknowledged alert: %+v", res)
	}
	for _, a := range s.AllAlerts(d.ID) {
		if a.ID == ackID && a.Status != domain.AlertStatusAcknowledged {
			t.Fatalf("acknowledged alert mutated to %s", a.Status)
		}
	}
}

// failingStore wraps the memory store and fails inserts for one alert type.
type failingStore struct {
	*store.MemoryStore
	failType domain.AlertType
}

func (f *failingStore) InsertAlert(ctx context.Context, a *domain.Alert) error {
	if a.Type == f.failType {
		return errors.New("insert refused")
	}
	return f.MemoryStore.InsertAlert(ctx, a)
}

func TestReconcilePartialFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	d := newDevice(mem, "DRY-001")
	touch(t, mem, d.ID)
	putReading(t, mem, d.ID, 85, 5) // two rules fire

	s := &failingStore{MemoryStore: mem, failType: domain.AlertHighTemperature}
	r := alerts.NewReconciler(s, domain.Catalog(domain.DefaultThresholds()))
	res := r.Reconcile(context.Background(), d)

	if res.Created != 1 {
		t.Errorf("expected the unaffected alert to be created, got %+v", res)
	}
	if len(res.Errors) != 1 {
		t.Errorf("expected one recorded error, got %v", res.Errors)
	}
	active := activeByType(mem, d.ID)
	if active[domain.AlertLowBattery] != 1 || active[domain.AlertHighTemperature] != 0 {
		t.Errorf("unexpected active set %v", active)
	}
}

// countingNotifier records creation callbacks.
type countingNotifier struct {
	mu    sync.Mutex
	types []domain.AlertType
}

func (n *countingNotifier) AlertCreated(ctx context.Context, d *domain.Device, a *domain.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.types = append(n.types, a.Type)
}

func TestReconcileNotifiesOnCreation(t *testing.T) {
	s := store.NewMemoryStore()
	d := newDevice(s, "DRY-001")
	touch(t, s, d.ID)
	putReading(t, s, d.ID, 85, 50)

	n := &countingNotifier{}
	r := alerts.NewReconciler(s, domain.Catalog(domain.DefaultThresholds()), n)
	r.Reconcile(context.Background(), d)

	if len(n.types) != 1 || n.types[0] != domain.AlertHighTemperature {
		t.Fatalf("notifier saw %v", n.types)
	}

	// Resolution must not notify.
	putReading(t, s, d.ID, 50, 50)
	r.Reconcile(context.Background(), d)
	if len(n.types) != 1 {
		t.Fatalf("notifier called on resolve: %v", n.types)
	}
}
