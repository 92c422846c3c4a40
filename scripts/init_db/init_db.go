package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "dryer_user"),
		dbGetEnv("DB_PASSWORD", "dryer_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "dryer_fleet"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to TimescaleDB...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure TimescaleDB is running:\n  docker-compose up -d timescaledb", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	// Run all steps in order
	step1_extensions(ctx, conn)
	step2_dryers_table(ctx, conn)
	step3_readings_table(ctx, conn)
	step4_alerts_table(ctx, conn)
	step5_rejections_table(ctx, conn)
	step6_indexes(ctx, conn)
	step7_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run scripts/seed_redis/seed_redis.go")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — Extensions
// ─────────────────────────────────────────────────────────────
func step1_extensions(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Extensions ──────────────────────────")

	// TimescaleDB — required for the sensor_readings hypertable
	execOrFatal(ctx, conn,
		"CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;",
		"timescaledb extension",
	)
}

// ─────────────────────────────────────────────────────────────
// Step 2 — dryers table
// ─────────────────────────────────────────────────────────────
func step2_dryers_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: dryers table ────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS dryers (

			id                   UUID             PRIMARY KEY,

			-- Human-facing identity printed on the unit
			dryer_id             TEXT             NOT NULL UNIQUE,
			serial_number        TEXT             NOT NULL UNIQUE,

			status               TEXT             NOT NULL DEFAULT 'idle',
			deployment_date      TIMESTAMPTZ,
			current_preset_id    UUID,

			-- Refreshed on every accepted reading; the stale sweep keys off it
			last_communication   TIMESTAMPTZ,

			-- Denormalized counter maintained by the alert lifecycle
			active_alerts_count  INTEGER          NOT NULL DEFAULT 0,

			CONSTRAINT chk_dryer_status CHECK (
				status IN ('active', 'idle', 'offline', 'maintenance', 'decommissioned')
			)
		);
	`, "dryers table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — sensor_readings table
// ─────────────────────────────────────────────────────────────
func step3_readings_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: sensor_readings table ───────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS sensor_readings (

			id                   UUID             NOT NULL,
			dryer_id             UUID             NOT NULL,

			-- Device clock vs server receipt time — device clocks drift
			timestamp            TIMESTAMPTZ      NOT NULL,
			received_at          TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			-- Temperatures (NULL = sensor offline, not zero)
			chamber_temp         DOUBLE PRECISION,
			ambient_temp         DOUBLE PRECISION,
			heater_temp          DOUBLE PRECISION,

			-- Humidity
			internal_humidity    DOUBLE PRECISION,
			external_humidity    DOUBLE PRECISION,

			-- Fan and operational status
			fan_speed_rpm        DOUBLE PRECISION,
			fan_status           BOOLEAN,
			heater_status        BOOLEAN,
			door_status          BOOLEAN,

			-- Power metrics
			solar_voltage        DOUBLE PRECISION,
			battery_voltage      DOUBLE PRECISION,
			battery_level        DOUBLE PRECISION,
			power_consumption_w  DOUBLE PRECISION,
			charging_status      TEXT,

			active_preset_id     UUID,

			-- Original JSON payload — stored for debugging and replay
			raw_payload          JSONB
		);
	`, "sensor_readings table created")

	// Partition by time into 7-day chunks; recent-data queries stay fast
	execOrFatal(ctx, conn, `
		SELECT create_hypertable(
			'sensor_readings',
			'timestamp',
			if_not_exists => TRUE
		);
	`, "sensor_readings converted to hypertable")
}

// ─────────────────────────────────────────────────────────────
// Step 4 — alerts table
// ─────────────────────────────────────────────────────────────
func step4_alerts_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: alerts table ────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS alerts (

			id               UUID             PRIMARY KEY,
			dryer_id         UUID             NOT NULL,

			type             TEXT             NOT NULL,
			severity         TEXT             NOT NULL,
			status           TEXT             NOT NULL DEFAULT 'active',

			-- Content is frozen at creation; only status moves afterwards
			message          TEXT             NOT NULL,
			threshold_value  DOUBLE PRECISION,
			current_value    DOUBLE PRECISION,

			created_at       TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			acknowledged_at  TIMESTAMPTZ,
			acknowledged_by  TEXT,
			resolved_at      TIMESTAMPTZ,
			notes            TEXT,

			CONSTRAINT chk_alert_type CHECK (
				type IN ('high_temperature', 'low_battery', 'offline',
				         'sensor_failure', 'heater_malfunction',
				         'temperature_threshold', 'battery_low', 'solar_fault',
				         'fan_anomaly', 'cycle_complete', 'maintenance_due')
			),

			CONSTRAINT chk_severity CHECK (
				severity IN ('critical', 'warning', 'info')
			),

			CONSTRAINT chk_alert_status CHECK (
				status IN ('active', 'acknowledged', 'resolved', 'dismissed')
			)
		);
	`, "alerts table created")
}

// ─────────────────────────────────────────────────────────────
// Step 5 — rejected_readings table
// ─────────────────────────────────────────────────────────────
func step5_rejections_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: rejected_readings table ─────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS rejected_readings (

			id               BIGSERIAL        PRIMARY KEY,

			-- External dryer id as sent by the device — may not resolve
			dryer_id         TEXT             NOT NULL,

			raw_payload      JSONB,
			errors           TEXT[],
			warnings         TEXT[],
			rejected_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);
	`, "rejected_readings table created")
}

// ─────────────────────────────────────────────────────────────
// Step 6 — Indexes
// ─────────────────────────────────────────────────────────────
func step6_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 6: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_readings_dryer_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_readings_dryer_time
				  ON sensor_readings (dryer_id, timestamp DESC);`,
			why: "query: latest reading for one dryer",
		},
		{
			name: "idx_readings_chamber_temp",
			sql: `CREATE INDEX IF NOT EXISTS idx_readings_chamber_temp
				  ON sensor_readings (timestamp DESC)
				  WHERE chamber_temp > 80;`,
			why: "query: acute-temperature sweep candidates",
		},
		{
			name: "idx_alerts_dryer_status",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_dryer_status
				  ON alerts (dryer_id, status);`,
			why: "query: active alerts for one dryer",
		},
		{
			name: "idx_alerts_created",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_created
				  ON alerts (created_at DESC);`,
			why: "query: recent alerts feed",
		},
		{
			name: "idx_dryers_last_comm",
			sql: `CREATE INDEX IF NOT EXISTS idx_dryers_last_comm
				  ON dryers (last_communication)
				  WHERE status <> 'decommissioned';`,
			why: "query: stale-communication sweep candidates",
		},
		{
			name: "idx_rejections_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_rejections_time
				  ON rejected_readings (rejected_at DESC);`,
			why: "query: recent validation failures",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 7 — Verify everything was created
// ─────────────────────────────────────────────────────────────
func step7_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 7: Verification ────────────────────────")

	tables := []string{"dryers", "sensor_readings", "alerts", "rejected_readings"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var hypertableName string
	err := conn.QueryRow(ctx, `
		SELECT hypertable_name
		FROM timescaledb_information.hypertables
		WHERE hypertable_name = 'sensor_readings'
	`).Scan(&hypertableName)
	if err != nil {
		log.Fatalf("sensor_readings is not a hypertable: %v", err)
	}
	fmt.Printf("  ✓ hypertable: %s (time partitioned)\n", hypertableName)

	var indexCount int
	err = conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename IN ('dryers', 'sensor_readings', 'alerts', 'rejected_readings')
		AND indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
