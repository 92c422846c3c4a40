package config

import (
	"os"
	"strconv"
	"strings"

	"dryer-fleet/monitor/internal/domain"
)

type Config struct {
	// HTTP
	HTTPPort   string
	CronSecret string

	// Postgres / TimescaleDB
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Pipeline channels
	StateChannelSize int
	AlertChannelSize int
	AuditChannelSize int

	// Audit batch writer tuning
	AuditBatchSize       int
	AuditFlushIntervalMS int

	// Worker counts
	StateWriterWorkers int
	AlertWorkers       int
	SweepWorkers       int

	// Sweep scheduling
	FullSweepIntervalSec  int
	StaleSweepIntervalSec int
	HotSweepIntervalSec   int
	SweepTimeoutSec       int
	StaleAfterMinutes     int
	HotWindowMinutes      int

	// Alert rule thresholds
	CriticalTemperatureC   float64
	WarningTemperatureC    float64
	CriticalBatteryPct     float64
	WarningBatteryPct      float64
	OfflineCriticalSeconds float64
	OfflineWarningSeconds  float64
	SolarVoltageMinV       float64
	FanSpeedMinRPM         float64
	MaintenanceDays        float64
	MaintenanceLeadDays    float64

	// Auth
	AuthCacheTTLSeconds int
	ValidAPIKeys        []string
}

func Load() *Config {
	return &Config{
		HTTPPort:   getEnv("HTTP_PORT", "8002"),
		CronSecret: getEnv("CRON_SECRET", ""),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "dryer_user"),
		DBPassword: getEnv("DB_PASSWORD", "dryer_password"),
		DBName:     getEnv("DB_NAME", "dryer_fleet"),
		DBMaxConns: int32(getEnvInt("DB_MAX_CONNS", 15)),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		StateChannelSize: getEnvInt("STATE_CHANNEL_SIZE", 10000),
		AlertChannelSize: getEnvInt("ALERT_CHANNEL_SIZE", 10000),
		AuditChannelSize: getEnvInt("AUDIT_CHANNEL_SIZE", 5000),

		AuditBatchSize:       getEnvInt("AUDIT_BATCH_SIZE", 200),
		AuditFlushIntervalMS: getEnvInt("AUDIT_FLUSH_INTERVAL_MS", 500),

		StateWriterWorkers: getEnvInt("STATE_WRITER_WORKERS", 3),
		AlertWorkers:       getEnvInt("ALERT_WORKERS", 3),
		SweepWorkers:       getEnvInt("SWEEP_WORKERS", 8),

		FullSweepIntervalSec:  getEnvInt("FULL_SWEEP_INTERVAL_SECONDS", 300),
		StaleSweepIntervalSec: getEnvInt("STALE_SWEEP_INTERVAL_SECONDS", 60),
		HotSweepIntervalSec:   getEnvInt("HOT_SWEEP_INTERVAL_SECONDS", 120),
		SweepTimeoutSec:       getEnvInt("SWEEP_TIMEOUT_SECONDS", 120),
		StaleAfterMinutes:     getEnvInt("STALE_AFTER_MINUTES", 15),
		HotWindowMinutes:      getEnvInt("HOT_WINDOW_MINUTES", 10),

		CriticalTemperatureC:   getEnvFloat("ALERT_CRITICAL_TEMP_C", 80),
		WarningTemperatureC:    getEnvFloat("ALERT_WARNING_TEMP_C", 70),
		CriticalBatteryPct:     getEnvFloat("ALERT_CRITICAL_BATTERY_PCT", 10),
		WarningBatteryPct:      getEnvFloat("ALERT_WARNING_BATTERY_PCT", 30),
		OfflineCriticalSeconds: getEnvFloat("ALERT_OFFLINE_CRITICAL_SECONDS", 3600),
		OfflineWarningSeconds:  getEnvFloat("ALERT_OFFLINE_WARNING_SECONDS", 900),
		SolarVoltageMinV:       getEnvFloat("ALERT_SOLAR_VOLTAGE_MIN_V", 12),
		FanSpeedMinRPM:         getEnvFloat("ALERT_FAN_SPEED_MIN_RPM", 500),
		MaintenanceDays:        getEnvFloat("ALERT_MAINTENANCE_INTERVAL_DAYS", 90),
		MaintenanceLeadDays:    getEnvFloat("ALERT_MAINTENANCE_LEAD_DAYS", 7),

		AuthCacheTTLSeconds: getEnvInt("AUTH_CACHE_TTL_SECONDS", 300),
		ValidAPIKeys:        strings.Split(getEnv("VALID_API_KEYS", ""), ","),
	}
}

// Thresholds maps the env-tunable limits onto the rule catalog's input.
func (c *Config) Thresholds() domain.Thresholds {
	return domain.Thresholds{
		CriticalTemperature: c.CriticalTemperatureC,
		CriticalBattery:     c.CriticalBatteryPct,
		OfflineCritical:     c.OfflineCriticalSeconds,
		WarningTemperature:  c.WarningTemperatureC,
		WarningBattery:      c.WarningBatteryPct,
		OfflineWarning:      c.OfflineWarningSeconds,
		SolarVoltageMin:     c.SolarVoltageMinV,
		FanSpeedMin:         c.FanSpeedMinRPM,
		MaintenanceInterval: c.MaintenanceDays,
		MaintenanceLead:     c.MaintenanceLeadDays,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
