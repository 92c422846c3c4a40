package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dryer-fleet/monitor/internal/config"
	"dryer-fleet/monitor/internal/domain"
)

type TimescaleStore struct {
	pool *pgxpool.Pool
}

func NewTimescaleStore(ctx context.Context, cfg *config.Config) (*TimescaleStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &TimescaleStore{pool: pool}, nil
}

func (s *TimescaleStore) Close() {
	s.pool.Close()
}

func (s *TimescaleStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const deviceColumns = `id, dryer_id, serial_number, status, deployment_date,
	current_preset_id, last_communication, active_alerts_count`

func scanDevice(row pgx.Row) (*domain.Device, error) {
	var d domain.Device
	err := row.Scan(
		&d.ID,
		&d.DryerID,
		&d.SerialNumber,
		&d.Status,
		&d.DeploymentDate,
		&d.CurrentPresetID,
		&d.LastCommunication,
		&d.ActiveAlertsCount,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *TimescaleStore) GetDeviceByDryerID(ctx context.Context, dryerID string) (*domain.Device, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM dryers WHERE dryer_id = $1`, dryerID)
	d, err := scanDevice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device %s: %w", dryerID, err)
	}
	return d, nil
}

func (s *TimescaleStore) listDevices(ctx context.Context, query string, args ...interface{}) ([]domain.Device, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

func (s *TimescaleStore) ListDevices(ctx context.Context) ([]domain.Device, error) {
	return s.listDevices(ctx,
		`SELECT `+deviceColumns+` FROM dryers WHERE status <> 'decommissioned'`)
}

func (s *TimescaleStore) ListStaleDevices(ctx context.Context, olderThan time.Time) ([]domain.Device, error) {
	return s.listDevices(ctx,
		`SELECT `+deviceColumns+` FROM dryers
		 WHERE status <> 'decommissioned' AND last_communication < $1`,
		olderThan)
}

func (s *TimescaleStore) ListOverheatedDevices(ctx context.Context, since time.Time, minTemp float64) ([]domain.Device, error) {
	return s.listDevices(ctx,
		`SELECT DISTINCT `+deviceColumns+` FROM dryers
		 WHERE status <> 'decommissioned' AND id IN (
			SELECT dryer_id FROM sensor_readings
			WHERE timestamp >= $1 AND chamber_temp > $2
		 )`,
		since, minTemp)
}

func (s *TimescaleStore) TouchLastCommunication(ctx context.Context, deviceID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE dryers SET last_communication = $2 WHERE id = $1`, deviceID, at)
	if err != nil {
		return fmt.Errorf("touch last_communication for %s: %w", deviceID, err)
	}
	return nil
}

func (s *TimescaleStore) InsertReading(ctx context.Context, r *domain.SensorReading) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	query := `
		INSERT INTO sensor_readings
			(id, dryer_id, timestamp, received_at,
			 chamber_temp, ambient_temp, heater_temp,
			 internal_humidity, external_humidity,
			 fan_speed_rpm, fan_status, heater_status, door_status,
			 solar_voltage, battery_voltage, battery_level, power_consumption_w,
			 charging_status, active_preset_id, raw_payload)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			 $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.DeviceID,
		r.Timestamp,
		r.ReceivedAt,
		r.ChamberTemp,
		r.AmbientTemp,
		r.HeaterTemp,
		r.InternalHumidity,
		r.ExternalHumidity,
		r.FanSpeedRPM,
		r.FanOn,
		r.HeaterOn,
		r.DoorOpen,
		r.SolarVoltage,
		r.BatteryVoltage,
		r.BatteryLevel,
		r.PowerConsumptionW,
		string(r.ChargingStatus),
		r.ActivePresetID,
		string(r.RawPayload),
	)
	if err != nil {
		return fmt.Errorf("insert reading for %s: %w", r.DeviceID, err)
	}
	return nil
}

func (s *TimescaleStore) LatestReading(ctx context.Context, deviceID string) (*domain.SensorReading, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, dryer_id, timestamp, received_at,
		       chamber_temp, ambient_temp, heater_temp,
		       internal_humidity, external_humidity,
		       fan_speed_rpm, fan_status, heater_status, door_status,
		       solar_voltage, battery_voltage, battery_level, power_consumption_w,
		       charging_status, active_preset_id
		FROM sensor_readings
		WHERE dryer_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`, deviceID)

	var r domain.SensorReading
	var chargingStatus *string
	err := row.Scan(
		&r.ID,
		&r.DeviceID,
		&r.Timestamp,
		&r.ReceivedAt,
		&r.ChamberTemp,
		&r.AmbientTemp,
		&r.HeaterTemp,
		&r.InternalHumidity,
		&r.ExternalHumidity,
		&r.FanSpeedRPM,
		&r.FanOn,
		&r.HeaterOn,
		&r.DoorOpen,
		&r.SolarVoltage,
		&r.BatteryVoltage,
		&r.BatteryLevel,
		&r.PowerConsumptionW,
		&chargingStatus,
		&r.ActivePresetID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest reading for %s: %w", deviceID, err)
	}
	if chargingStatus != nil {
		r.ChargingStatus = domain.ChargingStatus(*chargingStatus)
	}
	return &r, nil
}

func (s *TimescaleStore) ActiveAlerts(ctx context.Context, deviceID string) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, dryer_id, type, severity, status, message,
		       threshold_value, current_value,
		       created_at, acknowledged_at, acknowledged_by, resolved_at, notes
		FROM alerts
		WHERE dryer_id = $1 AND status = 'active'
		ORDER BY created_at
	`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("active alerts for %s: %w", deviceID, err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		err := rows.Scan(
			&a.ID,
			&a.DeviceID,
			&a.Type,
			&a.Severity,
			&a.Status,
			&a.Message,
			&a.ThresholdValue,
			&a.CurrentValue,
			&a.CreatedAt,
			&a.AcknowledgedAt,
			&a.AcknowledgedBy,
			&a.ResolvedAt,
			&a.Notes,
		)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *TimescaleStore) InsertAlert(ctx context.Context, a *domain.Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	query := `
		INSERT INTO alerts
			(id, dryer_id, type, severity, status, message,
			 threshold_value, current_value, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.pool.Exec(ctx, query,
		a.ID,
		a.DeviceID,
		string(a.Type),
		string(a.Severity),
		string(a.Status),
		a.Message,
		a.ThresholdValue,
		a.CurrentValue,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert %s alert for %s: %w", a.Type, a.DeviceID, err)
	}
	return nil
}

func (s *TimescaleStore) ResolveAlert(ctx context.Context, alertID string, at time.Time) error {
	// Status guard keeps acknowledged/dismissed alerts out of automation's reach.
	_, err := s.pool.Exec(ctx, `
		UPDATE alerts SET status = 'resolved', resolved_at = $2
		WHERE id = $1 AND status = 'active'
	`, alertID, at)
	if err != nil {
		return fmt.Errorf("resolve alert %s: %w", alertID, err)
	}
	return nil
}

func (s *TimescaleStore) CountActiveAlerts(ctx context.Context, deviceID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM alerts WHERE dryer_id = $1 AND status = 'active'`,
		deviceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active alerts for %s: %w", deviceID, err)
	}
	return count, nil
}

func (s *TimescaleStore) SetActiveAlertCount(ctx context.Context, deviceID string, count int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE dryers SET active_alerts_count = $2 WHERE id = $1`, deviceID, count)
	if err != nil {
		return fmt.Errorf("set alert count for %s: %w", deviceID, err)
	}
	return nil
}

var rejectionColumns = []string{
	"dryer_id",
	"raw_payload",
	"errors",
	"warnings",
	"rejected_at",
}

// InsertRejectedBatch archives validation failures for forensics via CopyFrom.
func (s *TimescaleStore) InsertRejectedBatch(ctx context.Context, batch []*domain.RejectedReading) error {
	if len(batch) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(batch))
	for i, rr := range batch {
		rows[i] = []interface{}{
			rr.DryerID,
			string(rr.RawPayload),
			rr.Errors,
			rr.Warnings,
			rr.RejectedAt,
		}
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"rejected_readings"},
		rejectionColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("CopyFrom failed for batch of %d: %w", len(batch), err)
	}

	return nil
}
