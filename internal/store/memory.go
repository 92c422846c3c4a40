package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dryer-fleet/monitor/internal/domain"
)

// MemoryStore is an in-memory stand-in for the Timescale store. It backs the
// package tests and local development without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	devices   map[string]*domain.Device         // by internal id
	byDryerID map[string]string                 // external id -> internal id
	readings  map[string][]domain.SensorReading // by device id, append order
	alerts    map[string]*domain.Alert          // by alert id
	rejected  []domain.RejectedReading
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices:   make(map[string]*domain.Device),
		byDryerID: make(map[string]string),
		readings:  make(map[string][]domain.SensorReading),
		alerts:    make(map[string]*domain.Alert),
	}
}

// PutDevice registers or replaces a device row.
func (s *MemoryStore) PutDevice(d *domain.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	copied := *d
	s.devices[d.ID] = &copied
	s.byDryerID[d.DryerID] = d.ID
}

func (s *MemoryStore) GetDeviceByDryerID(ctx context.Context, dryerID string) (*domain.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDryerID[dryerID]
	if !ok {
		return nil, domain.ErrDeviceNotFound
	}
	copied := *s.devices[id]
	return &copied, nil
}

func (s *MemoryStore) ListDevices(ctx context.Context) ([]domain.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Device
	for _, d := range s.devices {
		if d.Status != domain.DeviceDecommissioned {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DryerID < out[j].DryerID })
	return out, nil
}

func (s *MemoryStore) ListStaleDevices(ctx context.Context, olderThan time.Time) ([]domain.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Device
	for _, d := range s.devices {
		if d.Status == domain.DeviceDecommissioned {
			continue
		}
		if d.LastCommunication != nil && d.LastCommunication.Before(olderThan) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DryerID < out[j].DryerID })
	return out, nil
}

func (s *MemoryStore) ListOverheatedDevices(ctx context.Context, since time.Time, minTemp float64) ([]domain.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Device
	for id, d := range s.devices {
		if d.Status == domain.DeviceDecommissioned {
			continue
		}
		for _, r := range s.readings[id] {
			if !r.Timestamp.Before(since) && r.ChamberTemp != nil && *r.ChamberTemp > minTemp {
				out = append(out, *d)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DryerID < out[j].DryerID })
	return out, nil
}

func (s *MemoryStore) TouchLastCommunication(ctx context.Context, deviceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.devices[deviceID]; ok {
		t := at
		d.LastCommunication = &t
	}
	return nil
}

func (s *MemoryStore) InsertReading(ctx context.Context, r *domain.SensorReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.readings[r.DeviceID] = append(s.readings[r.DeviceID], *r)
	return nil
}

func (s *MemoryStore) LatestReading(ctx context.Context, deviceID string) (*domain.SensorReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs := s.readings[deviceID]
	if len(rs) == 0 {
		return nil, nil
	}
	latest := rs[0]
	for _, r := range rs[1:] {
		if r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	return &latest, nil
}

func (s *MemoryStore) ActiveAlerts(ctx context.Context, deviceID string) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Alert
	for _, a := range s.alerts {
		if a.DeviceID == deviceID && a.Status == domain.AlertStatusActive {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) InsertAlert(ctx context.Context, a *domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	copied := *a
	s.alerts[a.ID] = &copied
	return nil
}

func (s *MemoryStore) ResolveAlert(ctx context.Context, alertID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[alertID]
	if !ok || a.Status != domain.AlertStatusActive {
		return nil
	}
	t := at
	a.Status = domain.AlertStatusResolved
	a.ResolvedAt = &t
	return nil
}

func (s *MemoryStore) CountActiveAlerts(ctx context.Context, deviceID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, a := range s.alerts {
		if a.DeviceID == deviceID && a.Status == domain.AlertStatusActive {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) SetActiveAlertCount(ctx context.Context, deviceID string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.devices[deviceID]; ok {
		d.ActiveAlertsCount = count
	}
	return nil
}

func (s *MemoryStore) InsertRejectedBatch(ctx context.Context, batch []*domain.RejectedReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rr := range batch {
		s.rejected = append(s.rejected, *rr)
	}
	return nil
}

// AllAlerts returns every alert row, for test assertions.
func (s *MemoryStore) AllAlerts(deviceID string) []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Alert
	for _, a := range s.alerts {
		if a.DeviceID == deviceID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// SetAlertStatus force-sets an alert's status, for test setup of operator
// transitions (acknowledge/dismiss).
func (s *MemoryStore) SetAlertStatus(alertID string, status domain.AlertStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.alerts[alertID]; ok {
		a.Status = status
	}
}

// Device returns a copy of the stored device row, for test assertions.
func (s *MemoryStore) Device(deviceID string) *domain.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.devices[deviceID]; ok {
		copied := *d
		return &copied
	}
	return nil
}

// RejectedCount reports how many rejection records were archived.
func (s *MemoryStore) RejectedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rejected)
}
