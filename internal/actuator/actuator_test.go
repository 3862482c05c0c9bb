package actuator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jereantequera/Autocann/internal/models"
)

type fakeDriver struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (d *fakeDriver) Set(ctx context.Context, a models.Actuator, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return errors.New("relay unreachable")
	}
	action := "off"
	if on {
		action = "on"
	}
	d.calls = append(d.calls, string(a)+":"+action)
	return nil
}

func newTestGateway(t *testing.T) (*Gateway, *fakeDriver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	driver := &fakeDriver{}
	return NewGateway(driver, rdb, zap.NewNop()), driver, mr
}

func TestSetStateIdempotent(t *testing.T) {
	g, driver, _ := newTestGateway(t)
	ctx := context.Background()

	changed, err := g.SetState(ctx, models.ActuatorHumidifier, true)
	require.NoError(t, err)
	assert.True(t, changed)

	// same state again is a no-op
	changed, err = g.SetState(ctx, models.ActuatorHumidifier, true)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, []string{"humidifier:on"}, driver.calls)
	assert.True(t, g.State().Humidifier)
}

func TestSetStateMirrorsRedis(t *testing.T) {
	g, _, mr := newTestGateway(t)
	ctx := context.Background()

	_, err := g.SetState(ctx, models.ActuatorDehumidifier, true)
	require.NoError(t, err)

	val, err := mr.Get("humidity_control_down")
	require.NoError(t, err)
	assert.Equal(t, "true", val)

	_, err = g.SetState(ctx, models.ActuatorDehumidifier, false)
	require.NoError(t, err)

	val, err = mr.Get("humidity_control_down")
	require.NoError(t, err)
	assert.Equal(t, "false", val)
}

func TestApplyReportsChanges(t *testing.T) {
	g, _, _ := newTestGateway(t)
	ctx := context.Background()

	changed, err := g.Apply(ctx, models.ActuatorState{Humidifier: true, Ventilation: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.Actuator{models.ActuatorHumidifier, models.ActuatorVentilation}, changed)

	// re-applying the same state changes nothing
	changed, err = g.Apply(ctx, models.ActuatorState{Humidifier: true, Ventilation: true})
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestDriverFailureKeepsState(t *testing.T) {
	g, driver, _ := newTestGateway(t)
	ctx := context.Background()

	driver.fail = true
	changed, err := g.SetState(ctx, models.ActuatorHumidifier, true)
	require.Error(t, err)
	assert.False(t, changed)
	assert.False(t, g.State().Humidifier, "failed switch must not be recorded as applied")
}

func TestAllOff(t *testing.T) {
	g, _, _ := newTestGateway(t)
	ctx := context.Background()

	_, err := g.Apply(ctx, models.ActuatorState{Humidifier: true, Ventilation: true})
	require.NoError(t, err)

	require.NoError(t, g.AllOff(ctx))
	assert.Equal(t, models.ActuatorState{}, g.State())
}
