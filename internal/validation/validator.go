package validation

import (
	"fmt"
	"log"
	"math"
	"time"

	"dryer-fleet/monitor/internal/domain"
)

// Result is the accept/reject decision for one reading. Errors block
// persistence; warnings ride along with an accepted reading.
type Result struct {
	Accepted bool
	Errors   []string
	Warnings []string
}

// Validator gates raw readings against per-signal ranges and cross-field
// plausibility rules. It never writes anywhere — rejection forensics are the
// caller's job (see LogRejection).
type Validator struct {
	ranges map[string]SensorRange
}

func NewValidator(ranges map[string]SensorRange) *Validator {
	return &Validator{ranges: ranges}
}

// Validate checks every signal present on the reading. A missing device
// reference is the only hard requirement; absent sensors are fine.
func (v *Validator) Validate(r *domain.SensorReading) Result {
	var errs, warns []string

	if r.DeviceID == "" {
		errs = append(errs, "dryer_id is required")
	}

	for _, sig := range r.Signals() {
		if sig.Value == nil {
			continue
		}
		errMsg, warnMsg := v.checkSignal(sig.Name, *sig.Value)
		if errMsg != "" {
			errs = append(errs, errMsg)
		}
		if warnMsg != "" {
			warns = append(warns, warnMsg)
		}
	}

	warns = append(warns, crossChecks(r)...)

	return Result{
		Accepted: len(errs) == 0,
		Errors:   errs,
		Warnings: warns,
	}
}

func (v *Validator) checkSignal(name string, value float64) (errMsg, warnMsg string) {
	rng, ok := v.ranges[name]
	if !ok {
		return fmt.Sprintf("Unknown sensor type: %s", name), ""
	}

	if math.IsNaN(value) {
		return fmt.Sprintf("Invalid value for %s: must be a number", name), ""
	}

	if value < rng.Min || value > rng.Max {
		return fmt.Sprintf("%s out of range: %s (acceptable: %g-%g%s)",
			name, formatValue(value, rng.Unit), rng.Min, rng.Max, rng.Unit), ""
	}

	// Outer warning band: past 80% of max or inside the bottom 20% of the span.
	warningMax := rng.Max * 0.8
	warningMin := rng.Min + (rng.Max-rng.Min)*0.2
	if value > warningMax || value < warningMin {
		return "", fmt.Sprintf("%s approaching limits: %s", name, formatValue(value, rng.Unit))
	}

	return "", ""
}

func formatValue(v float64, unit string) string {
	return fmt.Sprintf("%g%s", v, unit)
}

// crossChecks runs the physical-plausibility rules. Each needs every operand
// present and only ever produces warnings, never a rejection.
func crossChecks(r *domain.SensorReading) []string {
	var warns []string

	if r.HeaterOn != nil && *r.HeaterOn && r.ChamberTemp != nil && r.AmbientTemp != nil {
		if *r.ChamberTemp < *r.AmbientTemp {
			warns = append(warns,
				"Chamber temperature is lower than ambient while heater is ON - possible sensor issue")
		}
	}

	if r.BatteryLevel != nil && r.BatteryVoltage != nil {
		// Typical 12V battery: 12.7V = 100%, 11.5V = 0%.
		expected := 11.5 + (*r.BatteryLevel/100)*1.2
		if math.Abs(*r.BatteryVoltage-expected) > 1.0 {
			warns = append(warns,
				"Battery voltage does not match battery level - possible calibration issue")
		}
	}

	if r.SolarVoltage != nil && *r.SolarVoltage > 0 {
		if r.ChargingStatus == domain.ChargingStatusDischarging {
			warns = append(warns,
				"Solar voltage detected but battery is discharging - possible charging circuit issue")
		}
	}

	return warns
}

// DeriveChargingStatus computes the charging state when the producer omits it.
// Total over all inputs including nils: always one of the four states.
func DeriveChargingStatus(solarVoltage, batteryVoltage, batteryLevel *float64) domain.ChargingStatus {
	if solarVoltage == nil || batteryVoltage == nil {
		return domain.ChargingStatusOffline
	}
	if *solarVoltage > *batteryVoltage+0.5 {
		return domain.ChargingStatusCharging
	}
	if batteryLevel != nil && *batteryLevel > 95 && *solarVoltage > 12 {
		return domain.ChargingStatusFloat
	}
	if *solarVoltage < 12 {
		return domain.ChargingStatusDischarging
	}
	return domain.ChargingStatusFloat
}

// LogRejection records a failed validation for operator forensics.
func LogRejection(dryerID string, payload []byte, res Result) {
	log.Printf("[VALIDATION FAILURE] time=%s dryer_id=%s errors=%v warnings=%v payload=%s",
		time.Now().UTC().Format(time.RFC3339), dryerID, res.Errors, res.Warnings, payload)
}
