package validation_test

import (
	"math"
	"strings"
	"testing"

	"dryer-fleet/monitor/internal/domain"
	"dryer-fleet/monitor/internal/validation"
)

func fp(v float64) *float64 { return &v }
func bp(v bool) *bool       { return &v }

func newReading() *domain.SensorReading {
	return &domain.SensorReading{DeviceID: "dev-1"}
}

func TestValidateInRange(t *testing.T) {
	v := validation.NewValidator(validation.DefaultRanges())

	r := newReading()
	r.ChamberTemp = fp(45)

	res := v.Validate(r)
	if !res.Accepted {
		t.Fatalf("expected accept, got errors: %v", res.Errors)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", res.Warnings)
	}
}

func TestValidateOutOfRange(t *testing.T) {
	v := validation.NewValidator(validation.DefaultRanges())

	r := newReading()
	r.ChamberTemp = fp(105)

	res := v.Validate(r)
	if res.Accepted {
		t.Fatal("expected reject for out-of-range chamber temp")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "chamber_temp") {
		t.Errorf("expected error naming chamber_temp, got %v", res.Errors)
	}
}

func TestValidateWarningBand(t *testing.T) {
	v := validation.NewValidator(validation.DefaultRanges())

	r := newReading()
	r.ChamberTemp = fp(95) // above 80% of max

	res := v.Validate(r)
	if !res.Accepted {
		t.Fatalf("expected accept, got errors: %v", res.Errors)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "chamber_temp") {
		t.Errorf("expected warning naming chamber_temp, got %v", res.Warnings)
	}
}

func TestValidateMissingDevice(t *testing.T) {
	v := validation.NewValidator(validation.DefaultRanges())

	res := v.Validate(&domain.SensorReading{})
	if res.Accepted {
		t.Fatal("expected reject without a device reference")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "dryer_id") {
		t.Errorf("expected dryer_id error, got %v", res.Errors)
	}
}

func TestValidateNaN(t *testing.T) {
	v := validation.NewValidator(validation.DefaultRanges())

	r := newReading()
	r.BatteryLevel = fp(math.NaN())

	res := v.Validate(r)
	if res.Accepted {
		t.Fatal("expected reject for NaN value")
	}
	if !strings.Contains(res.Errors[0], "must be a number") {
		t.Errorf("unexpected error: %v", res.Errors)
	}
}

func TestValidateUnknownSensor(t *testing.T) {
	ranges := validation.DefaultRanges()
	delete(ranges, domain.SignalFanSpeedRPM)
	v := validation.NewValidator(ranges)

	r := newReading()
	r.FanSpeedRPM = fp(1000)

	res := v.Validate(r)
	if res.Accepted {
		t.Fatal("expected reject for sensor without a configured range")
	}
	if !strings.Contains(res.Errors[0], "Unknown sensor type: fan_speed_rpm") {
		t.Errorf("unexpected error: %v", res.Errors)
	}
}

func TestCrossCheckHeaterBelowAmbient(t *testing.T) {
	v := validation.NewValidator(validation.DefaultRanges())

	r := newReading()
	r.HeaterOn = bp(true)
	r.ChamberTemp = fp(25)
	r.AmbientTemp = fp(30)

	res := v.Validate(r)
	if !res.Accepted {
		t.Fatalf("plausibility issues must not block acceptance, got %v", res.Errors)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "heater") {
		t.Errorf("expected heater warning, got %v", res.Warnings)
	}
}

func TestCrossCheckBatteryVoltageMismatch(t *testing.T) {
	v := validation.NewValidator(validation.DefaultRanges())

	// Expected voltage for 100% is 12.7V; 11.4V is more than 1.0V off but
	// still inside the battery_voltage warning band boundary check below.
	r := newReading()
	r.BatteryLevel = fp(100)
	r.BatteryVoltage = fp(11.4)

	res := v.Validate(r)
	if !res.Accepted {
		t.Fatalf("expected accept, got %v", res.Errors)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "calibration") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected calibration warning, got %v", res.Warnings)
	}
}

func TestCrossCheckSolarWhileDischarging(t *testing.T) {
	v := validation.NewValidator(validation.DefaultRanges())

	r := newReading()
	r.SolarVoltage = fp(14)
	r.ChargingStatus = domain.ChargingStatusDischarging

	res := v.Validate(r)
	if !res.Accepted {
		t.Fatalf("expected accept, got %v", res.Errors)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "charging circuit") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected charging circuit warning, got %v", res.Warnings)
	}
}

func TestCrossCheckSkippedWhenOperandMissing(t *testing.T) {
	v := validation.NewValidator(validation.DefaultRanges())

	r := newReading()
	r.HeaterOn = bp(true)
	r.ChamberTemp = fp(25) // ambient missing: check must not run

	res := v.Validate(r)
	if !res.Accepted || len(res.Warnings) != 0 {
		t.Errorf("expected clean accept, got errors=%v warnings=%v", res.Errors, res.Warnings)
	}
}

func TestDeriveChargingStatusTotality(t *testing.T) {
	valid := map[domain.ChargingStatus]bool{
		domain.ChargingStatusCharging:    true,
		domain.ChargingStatusDischarging: true,
		domain.ChargingStatusFloat:       true,
		domain.ChargingStatusOffline:     true,
	}

	values := []*float64{nil, fp(0), fp(5), fp(11), fp(12.4), fp(13), fp(50), fp(96), fp(100)}
	for _, solar := range values {
		for _, batt := range values {
			for _, level := range values {
				got := validation.DeriveChargingStatus(solar, batt, level)
				if !valid[got] {
					t.Fatalf("DeriveChargingStatus(%v, %v, %v) = %q, not a valid state",
						solar, batt, level, got)
				}
			}
		}
	}
}

func TestDeriveChargingStatusCases(t *testing.T) {
	cases := []struct {
		name   string
		solar  *float64
		batt   *float64
		level  *float64
		expect domain.ChargingStatus
	}{
		{"no solar reading", nil, fp(12), fp(50), domain.ChargingStatusOffline},
		{"no battery reading", fp(13), nil, fp(50), domain.ChargingStatusOffline},
		{"solar well above battery", fp(13), fp(12), fp(50), domain.ChargingStatusCharging},
		{"full battery on float", fp(12.5), fp(12.4), fp(96), domain.ChargingStatusFloat},
		{"low solar discharging", fp(11), fp(12), fp(50), domain.ChargingStatusDischarging},
		{"steady state float", fp(12.5), fp(12.4), fp(50), domain.ChargingStatusFloat},
	}

	for _, tc := range cases {
		if got := validation.DeriveChargingStatus(tc.solar, tc.batt, tc.level); got != tc.expect {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.expect)
		}
	}
}
