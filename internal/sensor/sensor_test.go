package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestESP32SensorRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"temperature": 24.5, "humidity": 58.2}`)
	}))
	defer srv.Close()

	s := NewESP32Sensor(srv.URL, time.Second)
	sample, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 24.5, sample.Temperature)
	assert.Equal(t, 58.2, sample.Humidity)
	assert.Equal(t, "esp32", sample.Source)
	assert.WithinDuration(t, time.Now(), sample.Timestamp, 5*time.Second)
}

func TestESP32SensorOutOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"temperature": 85.0, "humidity": 50.0}`)
	}))
	defer srv.Close()

	s := NewESP32Sensor(srv.URL, time.Second)
	_, err := s.Read(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindOutOfRange))
}

func TestESP32SensorServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewESP32Sensor(srv.URL, time.Second)
	_, err := s.Read(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindBusError))
}

func TestESP32SensorTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	s := NewESP32Sensor(srv.URL, 20*time.Millisecond)
	_, err := s.Read(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTimeout))
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestCachedSensorRead(t *testing.T) {
	mr, rdb := newTestRedis(t)

	now := time.Now()
	payload, err := json.Marshal(map[string]interface{}{
		"temperature": 23.1,
		"humidity":    61.4,
		"timestamp":   now.Unix(),
	})
	require.NoError(t, err)
	mr.Set(indoorKey, string(payload))

	s := NewCachedSensor(rdb, time.Minute)
	sample, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 23.1, sample.Temperature)
	assert.Equal(t, 61.4, sample.Humidity)
	assert.Equal(t, "esp32_cache", sample.Source)
}

func TestCachedSensorMissing(t *testing.T) {
	_, rdb := newTestRedis(t)

	s := NewCachedSensor(rdb, time.Minute)
	_, err := s.Read(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTimeout))
}

func TestCachedSensorStale(t *testing.T) {
	mr, rdb := newTestRedis(t)

	payload, err := json.Marshal(map[string]interface{}{
		"temperature": 23.1,
		"humidity":    61.4,
		"timestamp":   time.Now().Add(-5 * time.Minute).Unix(),
	})
	require.NoError(t, err)
	mr.Set(indoorKey, string(payload))

	s := NewCachedSensor(rdb, time.Minute)
	_, err = s.Read(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTimeout))
}

func TestCachedSensorCorruptPayload(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Set(indoorKey, "not json")

	s := NewCachedSensor(rdb, time.Minute)
	_, err := s.Read(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindBusError))
}
