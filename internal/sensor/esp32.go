package sensor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
)

type esp32Payload struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// ESP32Sensor pulls readings from the indoor node's HTTP endpoint.
type ESP32Sensor struct {
	client *resty.Client
	url    string
}

func NewESP32Sensor(url string, timeout time.Duration) *ESP32Sensor {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0) // the control loop owns the retry policy
	return &ESP32Sensor{client: client, url: url}
}

func (s *ESP32Sensor) Read(ctx context.Context) (Sample, error) {
	var payload esp32Payload
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&payload).
		Get(s.url)
	if err != nil {
		return Sample{}, &Error{Kind: classifyNetError(err), Sensor: "esp32_indoor", Err: err}
	}
	if resp.StatusCode() != 200 {
		return Sample{}, &Error{
			Kind:   KindBusError,
			Sensor: "esp32_indoor",
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode()),
		}
	}

	sample := Sample{
		Temperature: payload.Temperature,
		Humidity:    payload.Humidity,
		Timestamp:   time.Now(),
		Source:      "esp32",
	}
	if err := validateSample("esp32_indoor", sample); err != nil {
		return Sample{}, err
	}
	return sample, nil
}

func classifyNetError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindBusError
}
