package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dryer-fleet/monitor/internal/config"
	"dryer-fleet/monitor/internal/domain"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// PipelineStateUpdate refreshes the dryer's live-state hash and publishes the
// reading for dashboard subscribers, in one round trip.
func (r *RedisStore) PipelineStateUpdate(ctx context.Context, reading *domain.SensorReading) error {
	stateData := map[string]interface{}{
		"dryer_id":        reading.DeviceID,
		"timestamp":       reading.Timestamp.Unix(),
		"received_at":     reading.ReceivedAt.Unix(),
		"charging_status": string(reading.ChargingStatus),
	}
	addFloat := func(key string, v *float64) {
		if v != nil {
			stateData[key] = *v
		}
	}
	addBool := func(key string, v *bool) {
		if v != nil {
			stateData[key] = *v
		}
	}
	addFloat("chamber_temp", reading.ChamberTemp)
	addFloat("ambient_temp", reading.AmbientTemp)
	addFloat("heater_temp", reading.HeaterTemp)
	addFloat("internal_humidity", reading.InternalHumidity)
	addFloat("external_humidity", reading.ExternalHumidity)
	addFloat("fan_speed_rpm", reading.FanSpeedRPM)
	addFloat("solar_voltage", reading.SolarVoltage)
	addFloat("battery_voltage", reading.BatteryVoltage)
	addFloat("battery_level", reading.BatteryLevel)
	addFloat("power_consumption_w", reading.PowerConsumptionW)
	addBool("fan_status", reading.FanOn)
	addBool("heater_status", reading.HeaterOn)
	addBool("door_status", reading.DoorOpen)

	pubPayload, err := json.Marshal(stateData)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	stateKey := fmt.Sprintf("dryer:%s:state", reading.DeviceID)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, stateKey, stateData)
	pipe.Expire(ctx, stateKey, 60*time.Second)
	pipe.Publish(ctx, "dryers:telemetry", pubPayload)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}

	return nil
}

// GetAPIKey resolves a device API key to its dryer id. Empty string means the
// key is unknown.
func (r *RedisStore) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("dryer:auth:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}

// AlertCreated publishes a freshly created alert on the dashboard channel.
// Implements the lifecycle's Notifier; failures are logged upstream, never
// fatal to reconciliation.
func (r *RedisStore) AlertCreated(ctx context.Context, device *domain.Device, alert *domain.Alert) {
	payload, err := json.Marshal(map[string]interface{}{
		"dryer_id":     device.DryerID,
		"alert_id":     alert.ID,
		"type":         string(alert.Type),
		"severity":     string(alert.Severity),
		"message":      alert.Message,
		"triggered_at": alert.CreatedAt.Unix(),
	})
	if err != nil {
		return
	}
	r.client.Publish(ctx, "dryers:alerts", payload)
}
