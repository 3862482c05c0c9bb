// Package cache is the realtime horizon: the latest snapshot, sensor health
// and short rolling windows kept in Redis. Everything here is best-effort;
// the durable history in the repository package stays authoritative.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/jereantequera/Autocann/internal/models"
)

const (
	snapshotKey     = "sensors"
	sensorStatusKey = "sensor_status"
	remoteSampleKey = "esp32_indoor"
)

// ErrMiss is returned when a requested key holds no value yet.
var ErrMiss = errors.New("cache miss")

// Cache wraps the Redis client for the snapshot and window keys.
type Cache struct {
	rdb    *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

func New(rdb *redis.Client, logger *zap.Logger) *Cache {
	return &Cache{rdb: rdb, logger: logger, now: time.Now}
}

// WriteSnapshot overwrites the current-cycle snapshot.
func (c *Cache) WriteSnapshot(ctx context.Context, snap *models.Snapshot) error {
	return c.setJSON(ctx, snapshotKey, snap)
}

// Snapshot returns the latest cycle's snapshot, or ErrMiss before the first
// cycle has completed.
func (c *Cache) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := c.getJSON(ctx, snapshotKey, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// WriteSensorStatus overwrites the per-sensor connectivity record.
func (c *Cache) WriteSensorStatus(ctx context.Context, status *models.SensorStatus) error {
	return c.setJSON(ctx, sensorStatusKey, status)
}

// SensorStatus returns the connectivity record, or ErrMiss.
func (c *Cache) SensorStatus(ctx context.Context) (*models.SensorStatus, error) {
	var status models.SensorStatus
	if err := c.getJSON(ctx, sensorStatusKey, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StoreRemoteSample caches a sample pushed by the indoor node; the sensor
// gateway consumes it on the next cycle.
func (c *Cache) StoreRemoteSample(ctx context.Context, sample *models.RemoteSample) error {
	return c.setJSON(ctx, remoteSampleKey, sample)
}

// RemoteSample returns the last pushed indoor sample, or ErrMiss.
func (c *Cache) RemoteSample(ctx context.Context) (*models.RemoteSample, error) {
	var sample models.RemoteSample
	if err := c.getJSON(ctx, remoteSampleKey, &sample); err != nil {
		return nil, err
	}
	return &sample, nil
}

// ActuatorStates reads the mirrored actuator keys. Missing keys read as off.
func (c *Cache) ActuatorStates(ctx context.Context) (models.ActuatorState, error) {
	var state models.ActuatorState
	keys := map[string]*bool{
		"humidity_control_up":   &state.Humidifier,
		"humidity_control_down": &state.Dehumidifier,
		"ventilation_control":   &state.Ventilation,
	}
	for key, target := range keys {
		val, err := c.rdb.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return state, fmt.Errorf("read %s: %w", key, err)
		}
		*target = val == "true"
	}
	return state, nil
}

func (c *Cache) setJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (c *Cache) getJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
