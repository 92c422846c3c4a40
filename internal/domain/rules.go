package domain

import (
	"fmt"
	"log"
	"math"
	"time"
)

// Thresholds holds every tunable the rule catalog closes over. Deployments
// override these through config; no predicate hard-codes a limit.
type Thresholds struct {
	CriticalTemperature float64 // °C
	CriticalBattery     float64 // %
	OfflineCritical     float64 // seconds
	WarningTemperature  float64 // °C
	WarningBattery      float64 // %
	OfflineWarning      float64 // seconds
	SolarVoltageMin     float64 // V
	FanSpeedMin         float64 // RPM
	MaintenanceInterval float64 // days
	MaintenanceLead     float64 // days before interval boundary
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalTemperature: 80,
		CriticalBattery:     10,
		OfflineCritical:     3600,
		WarningTemperature:  70,
		WarningBattery:      30,
		OfflineWarning:      900,
		SolarVoltageMin:     12,
		FanSpeedMin:         500,
		MaintenanceInterval: 90,
		MaintenanceLead:     7,
	}
}

// RuleInput is the merged view of a device row and its latest reading that
// every rule predicate sees. Nil fields mean "no data" and must make a
// predicate evaluate to not-triggered, never panic.
type RuleInput struct {
	Now time.Time

	ChamberTemp      *float64
	AmbientTemp      *float64
	InternalHumidity *float64
	BatteryLevel     *float64
	SolarVoltage     *float64
	FanSpeedRPM      *float64
	HeaterOn         *bool
	FanOn            *bool
	ChargingStatus   ChargingStatus

	LastCommunication *time.Time
	DeploymentDate    *time.Time

	// Populated from the assigned preset when a drying cycle is running.
	PresetStartTime     *time.Time
	PresetDurationHours *float64
}

// NewRuleInput merges a device row with its latest reading. The reading may be
// nil (device registered but never reported); device-only rules still apply.
func NewRuleInput(d *Device, r *SensorReading, now time.Time) *RuleInput {
	in := &RuleInput{
		Now:               now,
		LastCommunication: d.LastCommunication,
		DeploymentDate:    d.DeploymentDate,
	}
	if r != nil {
		in.ChamberTemp = r.ChamberTemp
		in.AmbientTemp = r.AmbientTemp
		in.InternalHumidity = r.InternalHumidity
		in.BatteryLevel = r.BatteryLevel
		in.SolarVoltage = r.SolarVoltage
		in.FanSpeedRPM = r.FanSpeedRPM
		in.HeaterOn = r.HeaterOn
		in.FanOn = r.FanOn
		in.ChargingStatus = r.ChargingStatus
	}
	return in
}

func (in *RuleInput) offlineSeconds() (float64, bool) {
	if in.LastCommunication == nil {
		return 0, false
	}
	return in.Now.Sub(*in.LastCommunication).Seconds(), true
}

// AlertRule is one entry of the catalog: a severity-tagged predicate plus an
// optional extractor for the value that triggered it. Priority orders display
// only — multiple rules may fire at once.
type AlertRule struct {
	Type        AlertType
	Severity    AlertSeverity
	Priority    int
	Threshold   float64
	Message     string
	Description string
	Check       func(in *RuleInput) bool
	Value       func(in *RuleInput) (current float64, ok bool)
}

// Catalog builds the full ordered rule set against the given thresholds.
func Catalog(th Thresholds) []AlertRule {
	return []AlertRule{
		{
			Type:        AlertHighTemperature,
			Severity:    SeverityCritical,
			Priority:    1,
			Threshold:   th.CriticalTemperature,
			Message:     "CRITICAL: Temperature exceeds safe limits",
			Description: "Chamber temperature above critical limit - fire risk",
			Check: func(in *RuleInput) bool {
				return in.ChamberTemp != nil && *in.ChamberTemp > th.CriticalTemperature
			},
			Value: func(in *RuleInput) (float64, bool) {
				if in.ChamberTemp == nil {
					return 0, false
				}
				return *in.ChamberTemp, true
			},
		},
		{
			Type:        AlertLowBattery,
			Severity:    SeverityCritical,
			Priority:    2,
			Threshold:   th.CriticalBattery,
			Message:     "CRITICAL: Battery critically low",
			Description: "Battery level below critical limit - system may shut down",
			Check: func(in *RuleInput) bool {
				return in.BatteryLevel != nil && *in.BatteryLevel < th.CriticalBattery
			},
			Value: func(in *RuleInput) (float64, bool) {
				if in.BatteryLevel == nil {
					return 0, false
				}
				return *in.BatteryLevel, true
			},
		},
		{
			Type:        AlertOffline,
			Severity:    SeverityCritical,
			Priority:    3,
			Threshold:   th.OfflineCritical,
			Message:     "CRITICAL: Dryer offline for over 1 hour",
			Description: "No communication received in the last hour",
			Check: func(in *RuleInput) bool {
				secs, ok := in.offlineSeconds()
				if !ok {
					// Never communicated at all: treat as offline.
					return true
				}
				return secs > th.OfflineCritical
			},
			Value: func(in *RuleInput) (float64, bool) {
				return in.offlineSeconds()
			},
		},
		{
			Type:        AlertSensorFailure,
			Severity:    SeverityCritical,
			Priority:    4,
			Message:     "CRITICAL: Sensor failure detected",
			Description: "One or more sensors not responding",
			Check: func(in *RuleInput) bool {
				return in.ChamberTemp == nil && in.InternalHumidity == nil && in.BatteryLevel == nil
			},
		},
		{
			Type:        AlertHeaterMalfunction,
			Severity:    SeverityCritical,
			Priority:    5,
			Message:     "CRITICAL: Heater malfunction detected",
			Description: "Heater is ON but temperature not increasing",
			Check: func(in *RuleInput) bool {
				return in.HeaterOn != nil && *in.HeaterOn &&
					in.ChamberTemp != nil && in.AmbientTemp != nil &&
					*in.ChamberTemp < *in.AmbientTemp
			},
		},
		{
			Type:        AlertTemperatureThreshold,
			Severity:    SeverityWarning,
			Priority:    6,
			Threshold:   th.WarningTemperature,
			Message:     "WARNING: Temperature above normal",
			Description: "Chamber temperature above warning limit",
			Check: func(in *RuleInput) bool {
				return in.ChamberTemp != nil &&
					*in.ChamberTemp > th.WarningTemperature &&
					*in.ChamberTemp <= th.CriticalTemperature
			},
			Value: func(in *RuleInput) (float64, bool) {
				if in.ChamberTemp == nil {
					return 0, false
				}
				return *in.ChamberTemp, true
			},
		},
		{
			Type:        AlertBatteryLow,
			Severity:    SeverityWarning,
			Priority:    7,
			Threshold:   th.WarningBattery,
			Message:     "WARNING: Battery level low",
			Description: "Battery level below warning limit",
			Check: func(in *RuleInput) bool {
				return in.BatteryLevel != nil &&
					*in.BatteryLevel < th.WarningBattery &&
					*in.BatteryLevel >= th.CriticalBattery
			},
			Value: func(in *RuleInput) (float64, bool) {
				if in.BatteryLevel == nil {
					return 0, false
				}
				return *in.BatteryLevel, true
			},
		},
		{
			Type:        AlertOffline,
			Severity:    SeverityWarning,
			Priority:    8,
			Threshold:   th.OfflineWarning,
			Message:     "WARNING: Dryer offline",
			Description: "No communication for 15 minutes",
			Check: func(in *RuleInput) bool {
				secs, ok := in.offlineSeconds()
				if !ok {
					return false
				}
				// Disjoint with the critical band: exactly one or neither fires.
				return secs > th.OfflineWarning && secs <= th.OfflineCritical
			},
			Value: func(in *RuleInput) (float64, bool) {
				return in.offlineSeconds()
			},
		},
		{
			Type:        AlertSolarFault,
			Severity:    SeverityWarning,
			Priority:    9,
			Threshold:   th.SolarVoltageMin,
			Message:     "WARNING: Solar charging fault",
			Description: "Solar voltage low or charging not working",
			Check: func(in *RuleInput) bool {
				return in.SolarVoltage != nil &&
					*in.SolarVoltage < th.SolarVoltageMin &&
					in.ChargingStatus == ChargingStatusDischarging
			},
		},
		{
			Type:        AlertFanAnomaly,
			Severity:    SeverityWarning,
			Priority:    10,
			Threshold:   th.FanSpeedMin,
			Message:     "WARNING: Fan speed anomaly",
			Description: "Fan speed below expected range",
			Check: func(in *RuleInput) bool {
				return in.FanOn != nil && *in.FanOn &&
					in.FanSpeedRPM != nil && *in.FanSpeedRPM < th.FanSpeedMin
			},
		},
		{
			Type:        AlertCycleComplete,
			Severity:    SeverityInfo,
			Priority:    11,
			Message:     "INFO: Drying cycle completed",
			Description: "Preset duration reached",
			Check: func(in *RuleInput) bool {
				if in.PresetStartTime == nil || in.PresetDurationHours == nil {
					return false
				}
				elapsed := in.Now.Sub(*in.PresetStartTime).Hours()
				return elapsed >= *in.PresetDurationHours
			},
		},
		{
			Type:        AlertMaintenanceDue,
			Severity:    SeverityInfo,
			Priority:    12,
			Message:     "INFO: Maintenance due soon",
			Description: "Scheduled maintenance approaching",
			Check: func(in *RuleInput) bool {
				if in.DeploymentDate == nil {
					return false
				}
				daysActive := in.Now.Sub(*in.DeploymentDate).Hours() / 24
				// Recurs every interval; there is no last-serviced field to
				// terminate a cycle once maintenance is actually done.
				sinceLast := math.Mod(daysActive, th.MaintenanceInterval)
				return sinceLast >= th.MaintenanceInterval-th.MaintenanceLead
			},
		},
	}
}

// FiredRule pairs a triggered rule with the value/threshold snapshot taken at
// evaluation time.
type FiredRule struct {
	Rule         AlertRule
	CurrentValue *float64
	Threshold    *float64
}

// Evaluate runs every rule against the input. A panicking predicate counts as
// not-triggered so one broken rule cannot mask the rest of the catalog.
func Evaluate(rules []AlertRule, in *RuleInput) []FiredRule {
	var fired []FiredRule
	for _, rule := range rules {
		if !checkRule(rule, in) {
			continue
		}
		fr := FiredRule{Rule: rule}
		if rule.Value != nil {
			if cur, ok := rule.Value(in); ok {
				threshold := rule.Threshold
				fr.CurrentValue = &cur
				fr.Threshold = &threshold
			}
		}
		fired = append(fired, fr)
	}
	return fired
}

func checkRule(rule AlertRule, in *RuleInput) (triggered bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("rule %s/%s panicked, treating as not triggered: %v", rule.Type, rule.Severity, rec)
			triggered = false
		}
	}()
	return rule.Check(in)
}

// FormatAlertMessage appends the current/threshold suffix for rule types that
// report one.
func FormatAlertMessage(rule AlertRule, current, threshold *float64) string {
	msg := rule.Message
	if current == nil || threshold == nil {
		return msg
	}
	switch rule.Type {
	case AlertHighTemperature, AlertTemperatureThreshold:
		msg += fmt.Sprintf(" (Current: %.1f°C, Threshold: %.0f°C)", *current, *threshold)
	case AlertLowBattery, AlertBatteryLow:
		msg += fmt.Sprintf(" (Current: %.0f%%, Threshold: %.0f%%)", *current, *threshold)
	case AlertOffline:
		msg += fmt.Sprintf(" (Offline for: %d minutes)", int(*current/60))
	}
	return msg
}
