package domain

import "time"

type AlertType string

const (
	AlertHighTemperature      AlertType = "high_temperature"
	AlertLowBattery           AlertType = "low_battery"
	AlertOffline              AlertType = "offline"
	AlertSensorFailure        AlertType = "sensor_failure"
	AlertHeaterMalfunction    AlertType = "heater_malfunction"
	AlertTemperatureThreshold AlertType = "temperature_threshold"
	AlertBatteryLow           AlertType = "battery_low"
	AlertSolarFault           AlertType = "solar_fault"
	AlertFanAnomaly           AlertType = "fan_anomaly"
	AlertCycleComplete        AlertType = "cycle_complete"
	AlertMaintenanceDue       AlertType = "maintenance_due"
)

type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityWarning  AlertSeverity = "warning"
	SeverityInfo     AlertSeverity = "info"
)

type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusDismissed    AlertStatus = "dismissed"
)

// Alert content is frozen at creation time; only status moves after that.
// The automation creates active alerts and resolves them — acknowledged and
// dismissed are operator states it never touches.
type Alert struct {
	ID             string
	DeviceID       string
	Type           AlertType
	Severity       AlertSeverity
	Status         AlertStatus
	Message        string
	ThresholdValue *float64
	CurrentValue   *float64
	CreatedAt      time.Time
	AcknowledgedAt *time.Time
	AcknowledgedBy *string
	ResolvedAt     *time.Time
	Notes          *string
}

// ReconcileResult reports one device's reconcile pass.
type ReconcileResult struct {
	Created  int
	Resolved int
	Errors   []string
}

// SweepResult aggregates reconcile results across a device subset.
type SweepResult struct {
	DevicesChecked int
	Created        int
	Resolved       int
	Errors         []string
}

func (r *SweepResult) Add(other ReconcileResult) {
	r.DevicesChecked++
	r.Created += other.Created
	r.Resolved += other.Resolved
	r.Errors = append(r.Errors, other.Errors...)
}
