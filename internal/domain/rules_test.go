package domain_test

import (
	"strings"
	"testing"
	"time"

	"dryer-fleet/monitor/internal/domain"
)

func fp(v float64) *float64 { return &v }
func bp(v bool) *bool       { return &v }
func tp(t time.Time) *time.Time {
	return &t
}

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// healthy returns an input no rule in the catalog triggers on.
func healthy() *domain.RuleInput {
	return &domain.RuleInput{
		Now:               now,
		ChamberTemp:       fp(45),
		AmbientTemp:       fp(28),
		InternalHumidity:  fp(40),
		BatteryLevel:      fp(80),
		SolarVoltage:      fp(13),
		FanSpeedRPM:       fp(1200),
		HeaterOn:          bp(true),
		FanOn:             bp(true),
		ChargingStatus:    domain.ChargingStatusCharging,
		LastCommunication: tp(now.Add(-time.Minute)),
		DeploymentDate:    tp(now.Add(-10 * 24 * time.Hour)),
	}
}

func firedTypes(fired []domain.FiredRule) map[domain.AlertType][]domain.AlertSeverity {
	out := make(map[domain.AlertType][]domain.AlertSeverity)
	for _, f := range fired {
		out[f.Rule.Type] = append(out[f.Rule.Type], f.Rule.Severity)
	}
	return out
}

func TestCatalogHealthyInputFiresNothing(t *testing.T) {
	rules := domain.Catalog(domain.DefaultThresholds())
	if fired := domain.Evaluate(rules, healthy()); len(fired) != 0 {
		t.Fatalf("healthy input fired %v", firedTypes(fired))
	}
}

func TestHighTemperature(t *testing.T) {
	rules := domain.Catalog(domain.DefaultThresholds())

	in := healthy()
	in.ChamberTemp = fp(85)
	fired := firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertHighTemperature]) != 1 {
		t.Errorf("85°C: expected high_temperature, got %v", fired)
	}
	if len(fired[domain.AlertTemperatureThreshold]) != 0 {
		t.Errorf("85°C: warning band must not fire past critical, got %v", fired)
	}

	in.ChamberTemp = fp(75)
	fired = firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertHighTemperature]) != 0 || len(fired[domain.AlertTemperatureThreshold]) != 1 {
		t.Errorf("75°C: expected temperature_threshold only, got %v", fired)
	}
}

func TestBatteryBands(t *testing.T) {
	rules := domain.Catalog(domain.DefaultThresholds())

	in := healthy()
	in.BatteryLevel = fp(5)
	fired := firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertLowBattery]) != 1 || len(fired[domain.AlertBatteryLow]) != 0 {
		t.Errorf("5%%: expected low_battery only, got %v", fired)
	}

	in.BatteryLevel = fp(20)
	fired = firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertLowBattery]) != 0 || len(fired[domain.AlertBatteryLow]) != 1 {
		t.Errorf("20%%: expected battery_low only, got %v", fired)
	}
}

func TestOfflineBandsDisjoint(t *testing.T) {
	rules := domain.Catalog(domain.DefaultThresholds())

	cases := []struct {
		name     string
		lastComm *time.Time
		want     []domain.AlertSeverity
	}{
		{"recent", tp(now.Add(-500 * time.Second)), nil},
		{"warning band", tp(now.Add(-1000 * time.Second)), []domain.AlertSeverity{domain.SeverityWarning}},
		{"critical band", tp(now.Add(-4000 * time.Second)), []domain.AlertSeverity{domain.SeverityCritical}},
		{"never communicated", nil, []domain.AlertSeverity{domain.SeverityCritical}},
	}

	for _, tc := range cases {
		in := healthy()
		in.LastCommunication = tc.lastComm
		got := firedTypes(domain.Evaluate(rules, in))[domain.AlertOffline]
		if len(got) != len(tc.want) {
			t.Errorf("%s: offline severities = %v, want %v", tc.name, got, tc.want)
			continue
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("%s: offline severities = %v, want %v", tc.name, got, tc.want)
			}
		}
	}
}

func TestSensorFailure(t *testing.T) {
	rules := domain.Catalog(domain.DefaultThresholds())

	in := healthy()
	in.ChamberTemp = nil
	in.InternalHumidity = nil
	in.BatteryLevel = nil

	fired := firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertSensorFailure]) != 1 {
		t.Errorf("expected sensor_failure, got %v", fired)
	}

	// One live sensor is enough to clear it.
	in.BatteryLevel = fp(80)
	fired = firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertSensorFailure]) != 0 {
		t.Errorf("one sensor alive: expected no sensor_failure, got %v", fired)
	}
}

func TestHeaterMalfunction(t *testing.T) {
	rules := domain.Catalog(domain.DefaultThresholds())

	in := healthy()
	in.HeaterOn = bp(true)
	in.ChamberTemp = fp(22)
	in.AmbientTemp = fp(30)

	fired := firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertHeaterMalfunction]) != 1 {
		t.Errorf("expected heater_malfunction, got %v", fired)
	}

	in.HeaterOn = bp(false)
	fired = firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertHeaterMalfunction]) != 0 {
		t.Errorf("heater off: expected no heater_malfunction, got %v", fired)
	}
}

func TestSolarFault(t *testing.T) {
	rules := domain.Catalog(domain.DefaultThresholds())

	in := healthy()
	in.SolarVoltage = fp(10)
	in.ChargingStatus = domain.ChargingStatusDischarging

	fired := firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertSolarFault]) != 1 {
		t.Errorf("expected solar_fault, got %v", fired)
	}

	// Low voltage alone is not a fault while still charging.
	in.ChargingStatus = domain.ChargingStatusCharging
	fired = firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertSolarFault]) != 0 {
		t.Errorf("charging: expected no solar_fault, got %v", fired)
	}
}

func TestFanAnomaly(t *testing.T) {
	rules := domain.Catalog(domain.DefaultThresholds())

	in := healthy()
	in.FanOn = bp(true)
	in.FanSpeedRPM = fp(300)

	fired := firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertFanAnomaly]) != 1 {
		t.Errorf("expected fan_anomaly, got %v", fired)
	}

	in.FanOn = bp(false)
	fired = firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertFanAnomaly]) != 0 {
		t.Errorf("fan off: expected no fan_anomaly, got %v", fired)
	}
}

func TestCycleComplete(t *testing.T) {
	rules := domain.Catalog(domain.DefaultThresholds())

	in := healthy()
	fired := firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertCycleComplete]) != 0 {
		t.Errorf("no preset: expected no cycle_complete, got %v", fired)
	}

	in.PresetStartTime = tp(now.Add(-5 * time.Hour))
	in.PresetDurationHours = fp(4)
	fired = firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertCycleComplete]) != 1 {
		t.Errorf("elapsed > duration: expected cycle_complete, got %v", fired)
	}
}

func TestMaintenanceDue(t *testing.T) {
	rules := domain.Catalog(domain.DefaultThresholds())

	in := healthy()
	in.DeploymentDate = tp(now.Add(-85 * 24 * time.Hour))
	fired := firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertMaintenanceDue]) != 1 {
		t.Errorf("85 days deployed: expected maintenance_due, got %v", fired)
	}

	in.DeploymentDate = tp(now.Add(-10 * 24 * time.Hour))
	fired = firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertMaintenanceDue]) != 0 {
		t.Errorf("10 days deployed: expected no maintenance_due, got %v", fired)
	}
}

func TestNewRuleInputNilReading(t *testing.T) {
	lastComm := now.Add(-2 * time.Hour)
	device := &domain.Device{ID: "dev-1", LastCommunication: &lastComm}

	in := domain.NewRuleInput(device, nil, now)
	rules := domain.Catalog(domain.DefaultThresholds())

	fired := firedTypes(domain.Evaluate(rules, in))
	if len(fired[domain.AlertOffline]) != 1 {
		t.Errorf("device-only rules must still run with nil reading, got %v", fired)
	}
	// sensor_failure also fires: all three sensors absent.
	if len(fired[domain.AlertSensorFailure]) != 1 {
		t.Errorf("expected sensor_failure with nil reading, got %v", fired)
	}
}

func TestEvaluateRecoversPanickingRule(t *testing.T) {
	rules := []domain.AlertRule{
		{
			Type:     domain.AlertSensorFailure,
			Severity: domain.SeverityCritical,
			Check:    func(in *domain.RuleInput) bool { panic("broken predicate") },
		},
		{
			Type:     domain.AlertHighTemperature,
			Severity: domain.SeverityCritical,
			Check:    func(in *domain.RuleInput) bool { return true },
		},
	}

	fired := domain.Evaluate(rules, healthy())
	if len(fired) != 1 || fired[0].Rule.Type != domain.AlertHighTemperature {
		t.Fatalf("expected only the sound rule to fire, got %v", firedTypes(fired))
	}
}

func TestEvaluateSnapshotsValues(t *testing.T) {
	rules := domain.Catalog(domain.DefaultThresholds())

	in := healthy()
	in.ChamberTemp = fp(85)
	fired := domain.Evaluate(rules, in)

	if len(fired) != 1 {
		t.Fatalf("expected one fired rule, got %v", firedTypes(fired))
	}
	f := fired[0]
	if f.CurrentValue == nil || *f.CurrentValue != 85 {
		t.Errorf("CurrentValue = %v, want 85", f.CurrentValue)
	}
	if f.Threshold == nil || *f.Threshold != 80 {
		t.Errorf("Threshold = %v, want 80", f.Threshold)
	}
}

func TestFormatAlertMessage(t *testing.T) {
	rules := domain.Catalog(domain.DefaultThresholds())
	byType := make(map[domain.AlertType]map[domain.AlertSeverity]domain.AlertRule)
	for _, r := range rules {
		if byType[r.Type] == nil {
			byType[r.Type] = make(map[domain.AlertSeverity]domain.AlertRule)
		}
		byType[r.Type][r.Severity] = r
	}

	cases := []struct {
		rule      domain.AlertRule
		current   float64
		threshold float64
		suffix    string
	}{
		{byType[domain.AlertHighTemperature][domain.SeverityCritical], 85.4, 80, "(Current: 85.4°C, Threshold: 80°C)"},
		{byType[domain.AlertLowBattery][domain.SeverityCritical], 5, 10, "(Current: 5%, Threshold: 10%)"},
		{byType[domain.AlertOffline][domain.SeverityCritical], 4000, 3600, "(Offline for: 66 minutes)"},
	}

	for _, tc := range cases {
		got := domain.FormatAlertMessage(tc.rule, &tc.current, &tc.threshold)
		if !strings.HasSuffix(got, tc.suffix) {
			t.Errorf("%s: message %q does not end with %q", tc.rule.Type, got, tc.suffix)
		}
	}

	// No snapshot: message stays as configured.
	plain := domain.FormatAlertMessage(byType[domain.AlertSensorFailure][domain.SeverityCritical], nil, nil)
	if plain != "CRITICAL: Sensor failure detected" {
		t.Errorf("unexpected plain message %q", plain)
	}
}
