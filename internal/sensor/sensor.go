// Package sensor abstracts the chamber's temperature/humidity sources. The
// physical bus drivers live outside this module; implementations here cover
// the network-attached indoor node and its cached samples.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failed read.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindBusError   ErrorKind = "bus_error"
	KindOutOfRange ErrorKind = "out_of_range"
)

// Error is a typed sensor failure. The control loop recovers from these
// locally (retry, then last-known-good fallback); they never crash a cycle.
type Error struct {
	Kind   ErrorKind
	Sensor string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sensor %s: %s: %v", e.Sensor, e.Kind, e.Err)
	}
	return fmt.Sprintf("sensor %s: %s", e.Sensor, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a sensor Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var sensorErr *Error
	if errors.As(err, &sensorErr) {
		return sensorErr.Kind == kind
	}
	return false
}

// Sample is one temperature/humidity pair from a single sensor.
type Sample struct {
	Temperature float64
	Humidity    float64
	Timestamp   time.Time
	Source      string
}

// Gateway reads one physical or virtual sensor.
type Gateway interface {
	Read(ctx context.Context) (Sample, error)
}

// GatewayFunc adapts a plain function to Gateway; hardware bus drivers hook
// in through this.
type GatewayFunc func(ctx context.Context) (Sample, error)

func (f GatewayFunc) Read(ctx context.Context) (Sample, error) { return f(ctx) }

func validateSample(name string, s Sample) error {
	if s.Humidity < 0 || s.Humidity > 100 || s.Temperature < -10 || s.Temperature > 60 {
		return &Error{
			Kind:   KindOutOfRange,
			Sensor: name,
			Err:    fmt.Errorf("temperature=%.2f humidity=%.2f", s.Temperature, s.Humidity),
		}
	}
	return nil
}
