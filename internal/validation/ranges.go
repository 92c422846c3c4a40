package validation

import "dryer-fleet/monitor/internal/domain"

// SensorRange is the acceptable window for one signal. Values in the outer
// band (past 80% of max, or within the bottom 20% of the span) are accepted
// with a warning.
type SensorRange struct {
	Min         float64
	Max         float64
	Unit        string
	Description string
}

// DefaultRanges returns a fresh copy of the stock per-signal ranges so callers
// can override entries per deployment without touching the defaults.
func DefaultRanges() map[string]SensorRange {
	return map[string]SensorRange{
		domain.SignalChamberTemp:       {Min: -20, Max: 100, Unit: "°C", Description: "Drying chamber temperature"},
		domain.SignalAmbientTemp:       {Min: -20, Max: 60, Unit: "°C", Description: "Ambient temperature"},
		domain.SignalHeaterTemp:        {Min: 0, Max: 150, Unit: "°C", Description: "Heater element temperature"},
		domain.SignalInternalHumidity:  {Min: 0, Max: 100, Unit: "%", Description: "Internal chamber humidity"},
		domain.SignalExternalHumidity:  {Min: 0, Max: 100, Unit: "%", Description: "External ambient humidity"},
		domain.SignalBatteryLevel:      {Min: 0, Max: 100, Unit: "%", Description: "Battery level percentage"},
		domain.SignalBatteryVoltage:    {Min: 0, Max: 15, Unit: "V", Description: "Battery voltage"},
		domain.SignalSolarVoltage:      {Min: 0, Max: 25, Unit: "V", Description: "Solar panel voltage"},
		domain.SignalFanSpeedRPM:       {Min: 0, Max: 2000, Unit: "RPM", Description: "Fan speed"},
		domain.SignalPowerConsumptionW: {Min: 0, Max: 5000, Unit: "W", Description: "Power consumption"},
	}
}
