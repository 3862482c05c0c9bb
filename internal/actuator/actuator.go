// Package actuator drives the humidifier, dehumidifier and ventilation
// relays and mirrors their state into Redis for the API layer.
package actuator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/jereantequera/Autocann/internal/models"
)

// Driver switches one physical relay. Hardware integrations (GPIO, smart
// plugs) implement this; tests use a fake.
type Driver interface {
	Set(ctx context.Context, actuator models.Actuator, on bool) error
}

// DriverFunc adapts a function to Driver.
type DriverFunc func(ctx context.Context, actuator models.Actuator, on bool) error

func (f DriverFunc) Set(ctx context.Context, actuator models.Actuator, on bool) error {
	return f(ctx, actuator, on)
}

// NopDriver is used when no relay hardware is attached; state is still
// tracked and mirrored so the rest of the system behaves normally.
type NopDriver struct{}

func (NopDriver) Set(ctx context.Context, actuator models.Actuator, on bool) error { return nil }

// stateKeys mirror each actuator into Redis as "true"/"false".
var stateKeys = map[models.Actuator]string{
	models.ActuatorHumidifier:   "humidity_control_up",
	models.ActuatorDehumidifier: "humidity_control_down",
	models.ActuatorVentilation:  "ventilation_control",
}

// Gateway tracks actuator state and applies changes idempotently: setting an
// actuator to the state it already holds is a no-op and produces no relay
// traffic and no control event.
type Gateway struct {
	driver Driver
	rdb    *redis.Client
	logger *zap.Logger

	mu    sync.Mutex
	state models.ActuatorState
}

func NewGateway(driver Driver, rdb *redis.Client, logger *zap.Logger) *Gateway {
	return &Gateway{driver: driver, rdb: rdb, logger: logger}
}

// State returns the current tracked state.
func (g *Gateway) State() models.ActuatorState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SetState applies the requested state. It returns true when the relay
// actually changed, which is what the control loop records as an event.
func (g *Gateway) SetState(ctx context.Context, actuator models.Actuator, on bool) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.get(actuator) == on {
		return false, nil
	}
	if err := g.driver.Set(ctx, actuator, on); err != nil {
		return false, fmt.Errorf("set %s: %w", actuator, err)
	}
	g.set(actuator, on)
	g.mirror(ctx, actuator, on)
	return true, nil
}

// Apply drives all three actuators toward the desired state and returns the
// ones that changed.
func (g *Gateway) Apply(ctx context.Context, desired models.ActuatorState) ([]models.Actuator, error) {
	var changed []models.Actuator
	for _, a := range []models.Actuator{
		models.ActuatorHumidifier,
		models.ActuatorDehumidifier,
		models.ActuatorVentilation,
	} {
		switched, err := g.SetState(ctx, a, desired.Get(a))
		if err != nil {
			return changed, err
		}
		if switched {
			changed = append(changed, a)
		}
	}
	return changed, nil
}

// AllOff forces every actuator off, used on shutdown.
func (g *Gateway) AllOff(ctx context.Context) error {
	_, err := g.Apply(ctx, models.ActuatorState{})
	return err
}

func (g *Gateway) get(a models.Actuator) bool {
	switch a {
	case models.ActuatorHumidifier:
		return g.state.Humidifier
	case models.ActuatorDehumidifier:
		return g.state.Dehumidifier
	case models.ActuatorVentilation:
		return g.state.Ventilation
	}
	return false
}

func (g *Gateway) set(a models.Actuator, on bool) {
	switch a {
	case models.ActuatorHumidifier:
		g.state.Humidifier = on
	case models.ActuatorDehumidifier:
		g.state.Dehumidifier = on
	case models.ActuatorVentilation:
		g.state.Ventilation = on
	}
}

// mirror is best-effort; a cache outage must not block relay control.
func (g *Gateway) mirror(ctx context.Context, a models.Actuator, on bool) {
	if g.rdb == nil {
		return
	}
	key, ok := stateKeys[a]
	if !ok {
		return
	}
	mirrorCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := g.rdb.Set(mirrorCtx, key, fmt.Sprintf("%t", on), 0).Err(); err != nil {
		g.logger.Warn("failed to mirror actuator state",
			zap.String("actuator", string(a)),
			zap.Bool("on", on),
			zap.Error(err))
	}
}
