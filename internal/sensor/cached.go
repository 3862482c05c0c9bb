package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// indoorKey holds the last sample the ESP32 pushed over HTTP.
const indoorKey = "esp32_indoor"

type cachedPayload struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Timestamp   int64   `json:"timestamp"`
}

// CachedSensor reads the indoor sample the ESP32 pushed into Redis. A sample
// older than maxAge counts as a timeout so the loop falls back the same way
// it does for a dead HTTP node.
type CachedSensor struct {
	rdb    *redis.Client
	maxAge time.Duration
	now    func() time.Time
}

func NewCachedSensor(rdb *redis.Client, maxAge time.Duration) *CachedSensor {
	return &CachedSensor{rdb: rdb, maxAge: maxAge, now: time.Now}
}

func (s *CachedSensor) Read(ctx context.Context) (Sample, error) {
	raw, err := s.rdb.Get(ctx, indoorKey).Result()
	if err == redis.Nil {
		return Sample{}, &Error{Kind: KindTimeout, Sensor: indoorKey, Err: fmt.Errorf("no cached sample")}
	}
	if err != nil {
		return Sample{}, &Error{Kind: KindBusError, Sensor: indoorKey, Err: err}
	}

	var payload cachedPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Sample{}, &Error{Kind: KindBusError, Sensor: indoorKey, Err: err}
	}

	at := time.Unix(payload.Timestamp, 0)
	if age := s.now().Sub(at); age > s.maxAge {
		return Sample{}, &Error{
			Kind:   KindTimeout,
			Sensor: indoorKey,
			Err:    fmt.Errorf("sample is %s old", age.Truncate(time.Second)),
		}
	}

	sample := Sample{
		Temperature: payload.Temperature,
		Humidity:    payload.Humidity,
		Timestamp:   at,
		Source:      "esp32_cache",
	}
	if err := validateSample(indoorKey, sample); err != nil {
		return Sample{}, err
	}
	return sample, nil
}
