package domain

import "time"

type ChargingStatus string

const (
	ChargingStatusCharging    ChargingStatus = "charging"
	ChargingStatusDischarging ChargingStatus = "discharging"
	ChargingStatusFloat       ChargingStatus = "float"
	ChargingStatusOffline     ChargingStatus = "offline"
)

// SensorReading is one timestamped batch of readings from a dryer.
// Pointer fields model "sensor offline" — nil is a valid state, not zero.
// A reading is immutable once accepted; newer readings supersede it.
type SensorReading struct {
	ID         string
	DeviceID   string
	Timestamp  time.Time
	ReceivedAt time.Time

	ChamberTemp      *float64
	AmbientTemp      *float64
	HeaterTemp       *float64
	InternalHumidity *float64
	ExternalHumidity *float64

	FanSpeedRPM *float64
	FanOn       *bool
	HeaterOn    *bool
	DoorOpen    *bool

	SolarVoltage      *float64
	BatteryVoltage    *float64
	BatteryLevel      *float64
	PowerConsumptionW *float64
	ChargingStatus    ChargingStatus

	ActivePresetID *string
	RawPayload     []byte
}

// Signal names as they appear in ingest payloads and sensor_readings columns.
const (
	SignalChamberTemp       = "chamber_temp"
	SignalAmbientTemp       = "ambient_temp"
	SignalHeaterTemp        = "heater_temp"
	SignalInternalHumidity  = "internal_humidity"
	SignalExternalHumidity  = "external_humidity"
	SignalBatteryLevel      = "battery_level"
	SignalBatteryVoltage    = "battery_voltage"
	SignalSolarVoltage      = "solar_voltage"
	SignalFanSpeedRPM       = "fan_speed_rpm"
	SignalPowerConsumptionW = "power_consumption_w"
)

type Signal struct {
	Name  string
	Value *float64
}

// Signals lists the numeric fields present on the reading, in payload order.
// Absent sensors carry a nil value.
func (r *SensorReading) Signals() []Signal {
	return []Signal{
		{SignalChamberTemp, r.ChamberTemp},
		{SignalAmbientTemp, r.AmbientTemp},
		{SignalHeaterTemp, r.HeaterTemp},
		{SignalInternalHumidity, r.InternalHumidity},
		{SignalExternalHumidity, r.ExternalHumidity},
		{SignalBatteryLevel, r.BatteryLevel},
		{SignalBatteryVoltage, r.BatteryVoltage},
		{SignalSolarVoltage, r.SolarVoltage},
		{SignalFanSpeedRPM, r.FanSpeedRPM},
		{SignalPowerConsumptionW, r.PowerConsumptionW},
	}
}

// RejectedReading is the forensics record for a reading that failed validation.
// The raw payload is kept verbatim so operators can replay it.
type RejectedReading struct {
	DryerID    string
	RawPayload []byte
	Errors     []string
	Warnings   []string
	RejectedAt time.Time
}
