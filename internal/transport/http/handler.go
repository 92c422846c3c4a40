package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"dryer-fleet/monitor/internal/alerts"
	"dryer-fleet/monitor/internal/domain"
	"dryer-fleet/monitor/internal/metrics"
	"dryer-fleet/monitor/internal/pipeline"
	"dryer-fleet/monitor/internal/validation"
)

// IngestStore is the storage surface the ingest path needs.
type IngestStore interface {
	GetDeviceByDryerID(ctx context.Context, dryerID string) (*domain.Device, error)
	InsertReading(ctx context.Context, r *domain.SensorReading) error
	TouchLastCommunication(ctx context.Context, deviceID string, at time.Time) error
}

type sensorDataPayload struct {
	DryerID   string     `json:"dryer_id"`
	Timestamp *time.Time `json:"timestamp"`

	ChamberTemp      *float64 `json:"chamber_temp"`
	AmbientTemp      *float64 `json:"ambient_temp"`
	HeaterTemp       *float64 `json:"heater_temp"`
	InternalHumidity *float64 `json:"internal_humidity"`
	ExternalHumidity *float64 `json:"external_humidity"`

	FanSpeedRPM  *float64 `json:"fan_speed_rpm"`
	FanStatus    *bool    `json:"fan_status"`
	HeaterStatus *bool    `json:"heater_status"`
	DoorStatus   *bool    `json:"door_status"`

	SolarVoltage      *float64 `json:"solar_voltage"`
	BatteryVoltage    *float64 `json:"battery_voltage"`
	BatteryLevel      *float64 `json:"battery_level"`
	PowerConsumptionW *float64 `json:"power_consumption_w"`
	ChargingStatus    *string  `json:"charging_status"`

	ActivePresetID *string `json:"active_preset_id"`
}

type Handler struct {
	store      IngestStore
	validator  *validation.Validator
	dispatcher *pipeline.Dispatcher
}

func NewHandler(store IngestStore, validator *validation.Validator, dispatcher *pipeline.Dispatcher) *Handler {
	return &Handler{
		store:      store,
		validator:  validator,
		dispatcher: dispatcher,
	}
}

// HandleIngest receives one reading from a device. Validation errors reject
// with 400 and never persist; warnings ride along with the 201.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	metrics.ReadingsReceived.Add(1)

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "failed to read request body",
		})
		return
	}

	var payload sensorDataPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.ReadingsRejected.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid JSON body",
			"details": []string{err.Error()},
		})
		return
	}

	if payload.DryerID == "" {
		metrics.ReadingsRejected.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "validation failed",
			"details": []string{"dryer_id is required"},
		})
		return
	}

	device, err := h.store.GetDeviceByDryerID(r.Context(), payload.DryerID)
	if errors.Is(err, domain.ErrDeviceNotFound) {
		metrics.ReadingsRejected.Add(1)
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": "dryer not found",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to resolve dryer",
		})
		return
	}

	now := time.Now().UTC()
	reading := buildReading(device.ID, &payload, now, body)

	result := h.validator.Validate(reading)
	if len(result.Warnings) > 0 {
		metrics.ReadingWarnings.Add(int64(len(result.Warnings)))
	}
	if !result.Accepted {
		metrics.ReadingsRejected.Add(1)
		validation.LogRejection(payload.DryerID, body, result)
		h.dispatcher.DispatchRejection(&domain.RejectedReading{
			DryerID:    payload.DryerID,
			RawPayload: body,
			Errors:     result.Errors,
			Warnings:   result.Warnings,
			RejectedAt: now,
		})
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":    "validation failed",
			"details":  result.Errors,
			"warnings": result.Warnings,
		})
		return
	}

	if err := h.store.InsertReading(r.Context(), reading); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "failed to store sensor data",
		})
		return
	}

	if err := h.store.TouchLastCommunication(r.Context(), device.ID, now); err == nil {
		device.LastCommunication = &now
	}

	metrics.ReadingsAccepted.Add(1)
	h.dispatcher.Dispatch(device, reading)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"reading_id": reading.ID,
		"timestamp":  reading.Timestamp.Format(time.RFC3339),
		"warnings":   result.Warnings,
	})
}

func buildReading(deviceID string, p *sensorDataPayload, now time.Time, raw []byte) *domain.SensorReading {
	ts := now
	if p.Timestamp != nil {
		ts = p.Timestamp.UTC()
	}

	reading := &domain.SensorReading{
		DeviceID:          deviceID,
		Timestamp:         ts,
		ReceivedAt:        now,
		ChamberTemp:       p.ChamberTemp,
		AmbientTemp:       p.AmbientTemp,
		HeaterTemp:        p.HeaterTemp,
		InternalHumidity:  p.InternalHumidity,
		ExternalHumidity:  p.ExternalHumidity,
		FanSpeedRPM:       p.FanSpeedRPM,
		FanOn:             p.FanStatus,
		HeaterOn:          p.HeaterStatus,
		DoorOpen:          p.DoorStatus,
		SolarVoltage:      p.SolarVoltage,
		BatteryVoltage:    p.BatteryVoltage,
		BatteryLevel:      p.BatteryLevel,
		PowerConsumptionW: p.PowerConsumptionW,
		ActivePresetID:    p.ActivePresetID,
		RawPayload:        raw,
	}

	if p.ChargingStatus != nil && *p.ChargingStatus != "" {
		reading.ChargingStatus = domain.ChargingStatus(*p.ChargingStatus)
	} else {
		reading.ChargingStatus = validation.DeriveChargingStatus(
			p.SolarVoltage, p.BatteryVoltage, p.BatteryLevel)
	}

	return reading
}

// HandleCronAlerts triggers the full sweep on demand, for external schedulers.
func HandleCronAlerts(orch *alerts.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := orch.SweepAll(r.Context())
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"stats":     sweepStats(result),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func sweepStats(r domain.SweepResult) map[string]interface{} {
	return map[string]interface{}{
		"devices_checked": r.DevicesChecked,
		"alerts_created":  r.Created,
		"alerts_resolved": r.Resolved,
		"errors":          r.Errors,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// NewRouter wires the service routes.
func NewRouter(
	h *Handler,
	authMW *AuthMiddleware,
	orch *alerts.Orchestrator,
	cronSecret string,
	wsHandler http.HandlerFunc,
) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/api/sensor-data", authMW.Wrap(http.HandlerFunc(h.HandleIngest))).Methods(http.MethodPost)
	r.HandleFunc("/api/cron/alerts", CronAuth(cronSecret, HandleCronAlerts(orch))).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/metrics", metrics.HandleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	if wsHandler != nil {
		r.HandleFunc("/ws/alerts", wsHandler).Methods(http.MethodGet)
	}

	return r
}
