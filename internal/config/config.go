package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jereantequera/Autocann/internal/models"
)

// ConfigError marks a malformed configuration value. Fatal at startup: the
// daemon must halt before any actuator is driven.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// RedisConfig holds realtime-cache connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig holds optional broker settings for snapshot/alert publishing.
type MQTTConfig struct {
	Enabled     bool
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// Config is the full engine configuration, loaded from environment
// variables with defaults matching the reference deployment.
type Config struct {
	Redis RedisConfig
	MQTT  MQTTConfig

	Database struct {
		Path string
	}

	HTTP struct {
		ListenAddr string
	}

	Sensor struct {
		// Mode selects the indoor source: "cache" consumes samples the
		// ESP32 pushes through the API, "http" polls the node directly.
		Mode        string
		ESP32URL    string
		ReadTimeout time.Duration
		MaxRetries  int
		RetryDelay  time.Duration
		MaxAge      time.Duration
	}

	Control struct {
		PollInterval     time.Duration
		LeafOffset       float64 // °C below inside temperature
		HysteresisMargin float64 // %RH past the band midpoint before releasing
		VentDeltaOn      float64 // inside-outside %RH differential engaging ventilation
		VentDeltaOff     float64 // differential below which ventilation releases
		StageOverride    models.GrowthStage
	}

	Retention struct {
		Days          int
		PruneInterval time.Duration
	}

	Timezone string

	Log struct {
		Level  string
		Format string
	}
}

// Load builds the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Redis.Addr = getEnv("AUTOCANN_REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("AUTOCANN_REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("AUTOCANN_REDIS_DB", 0)

	cfg.Database.Path = getEnv("AUTOCANN_DB_PATH", "data/autocann.db")
	cfg.HTTP.ListenAddr = getEnv("AUTOCANN_HTTP_ADDR", ":5000")

	cfg.Sensor.Mode = getEnv("AUTOCANN_SENSOR_MODE", "cache")
	cfg.Sensor.ESP32URL = getEnv("AUTOCANN_ESP32_URL", "")
	cfg.Sensor.ReadTimeout = getEnvDuration("AUTOCANN_SENSOR_TIMEOUT", 5*time.Second)
	cfg.Sensor.MaxRetries = getEnvInt("AUTOCANN_SENSOR_RETRIES", 3)
	cfg.Sensor.RetryDelay = getEnvDuration("AUTOCANN_SENSOR_RETRY_DELAY", 2*time.Second)
	cfg.Sensor.MaxAge = getEnvDuration("AUTOCANN_SENSOR_MAX_AGE", 60*time.Second)

	cfg.Control.PollInterval = getEnvDuration("AUTOCANN_POLL_INTERVAL", 3*time.Second)
	cfg.Control.LeafOffset = getEnvFloat("AUTOCANN_LEAF_OFFSET", 1.5)
	cfg.Control.HysteresisMargin = getEnvFloat("AUTOCANN_HYSTERESIS_MARGIN", 2.0)
	cfg.Control.VentDeltaOn = getEnvFloat("AUTOCANN_VENT_DELTA_ON", 15.0)
	cfg.Control.VentDeltaOff = getEnvFloat("AUTOCANN_VENT_DELTA_OFF", 10.0)
	cfg.Control.StageOverride = models.GrowthStage(getEnv("AUTOCANN_STAGE_OVERRIDE", ""))

	cfg.MQTT.Broker = getEnv("AUTOCANN_MQTT_BROKER", "")
	cfg.MQTT.Enabled = cfg.MQTT.Broker != ""
	cfg.MQTT.ClientID = getEnv("AUTOCANN_MQTT_CLIENT_ID", "autocann-engine")
	cfg.MQTT.Username = getEnv("AUTOCANN_MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("AUTOCANN_MQTT_PASSWORD", "")
	cfg.MQTT.TopicPrefix = getEnv("AUTOCANN_MQTT_TOPIC_PREFIX", "autocann")
	cfg.MQTT.QoS = byte(getEnvInt("AUTOCANN_MQTT_QOS", 0))

	cfg.Retention.Days = getEnvInt("AUTOCANN_RETENTION_DAYS", 90)
	cfg.Retention.PruneInterval = getEnvDuration("AUTOCANN_PRUNE_INTERVAL", 24*time.Hour)

	cfg.Timezone = getEnv("AUTOCANN_TZ", "America/Argentina/Cordoba")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects malformed threshold constants before the loop starts.
func (c *Config) Validate() error {
	if c.Control.PollInterval <= 0 {
		return &ConfigError{Field: "AUTOCANN_POLL_INTERVAL", Reason: "must be positive"}
	}
	if c.Control.HysteresisMargin <= 0 {
		return &ConfigError{Field: "AUTOCANN_HYSTERESIS_MARGIN", Reason: "must be positive"}
	}
	if c.Control.VentDeltaOff <= 0 || c.Control.VentDeltaOn <= c.Control.VentDeltaOff {
		return &ConfigError{Field: "AUTOCANN_VENT_DELTA_ON/OFF", Reason: "need on-threshold > off-threshold > 0"}
	}
	if c.Control.StageOverride != "" && !c.Control.StageOverride.Valid() {
		return &ConfigError{Field: "AUTOCANN_STAGE_OVERRIDE", Reason: fmt.Sprintf("unknown stage %q", c.Control.StageOverride)}
	}
	if c.Retention.Days <= 0 {
		return &ConfigError{Field: "AUTOCANN_RETENTION_DAYS", Reason: "must be positive"}
	}
	if c.Sensor.Mode != "cache" && c.Sensor.Mode != "http" {
		return &ConfigError{Field: "AUTOCANN_SENSOR_MODE", Reason: `must be "cache" or "http"`}
	}
	if c.Sensor.Mode == "http" && c.Sensor.ESP32URL == "" {
		return &ConfigError{Field: "AUTOCANN_ESP32_URL", Reason: "required in http sensor mode"}
	}
	if c.Sensor.MaxRetries < 1 {
		return &ConfigError{Field: "AUTOCANN_SENSOR_RETRIES", Reason: "must be at least 1"}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return &ConfigError{Field: "AUTOCANN_TZ", Reason: err.Error()}
	}
	return nil
}

// Location returns the configured timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
