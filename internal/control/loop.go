package control

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jereantequera/Autocann/internal/actuator"
	"github.com/jereantequera/Autocann/internal/cache"
	"github.com/jereantequera/Autocann/internal/config"
	"github.com/jereantequera/Autocann/internal/models"
	"github.com/jereantequera/Autocann/internal/repository"
	"github.com/jereantequera/Autocann/internal/sensor"
	"github.com/jereantequera/Autocann/internal/stage"
	"github.com/jereantequera/Autocann/internal/vpd"
)

// Publisher receives cycle output for external distribution. Implementations
// must not block the loop.
type Publisher interface {
	PublishSnapshot(ctx context.Context, snap *models.Snapshot)
	PublishEvent(ctx context.Context, ev *models.ControlEvent)
}

// Loop is the imperative shell around the pure decision functions: one
// synchronous cycle per tick, sole writer of actuator state, control events
// and sensor rows.
type Loop struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *repository.Store
	cache     *cache.Cache
	actuators *actuator.Gateway
	inside    sensor.Gateway
	outside   sensor.Gateway
	publisher Publisher
	loc       *time.Location

	lastInside   sensor.Sample
	haveInside   bool
	lastOutside  sensor.Sample
	haveOutside  bool
	warnedNoGrow bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewLoop(
	cfg *config.Config,
	logger *zap.Logger,
	store *repository.Store,
	c *cache.Cache,
	actuators *actuator.Gateway,
	inside, outside sensor.Gateway,
	publisher Publisher,
) *Loop {
	return &Loop{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		cache:     c,
		actuators: actuators,
		inside:    inside,
		outside:   outside,
		publisher: publisher,
		loc:       cfg.Location(),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// Run drives cycles at the configured poll interval until ctx is cancelled.
// Only configuration-class failures (unknown stage) stop the loop; everything
// else degrades and retries next cycle.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.RunCycle(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(l.cfg.Control.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.RunCycle(ctx); err != nil {
				return err
			}
		}
	}
}

// RunCycle performs one synchronous cycle: read → compute → decide → apply →
// persist. A degraded cycle (stale sensor fallback) still drives actuators
// and refreshes the cache but skips the durable append.
func (l *Loop) RunCycle(ctx context.Context) error {
	now := l.now().In(l.loc)

	inside, outside, degraded, ok := l.readSensors(ctx)
	if !ok {
		return nil
	}

	leafTemp := inside.Temperature - l.cfg.Control.LeafOffset

	vpdVal, err := vpd.Calculate(inside.Temperature, inside.Humidity)
	if err != nil {
		l.logger.Warn("reading rejected", zap.Error(err),
			zap.Float64("temperature", inside.Temperature),
			zap.Float64("humidity", inside.Humidity))
		return nil
	}
	leafVPD, err := vpd.Calculate(leafTemp, inside.Humidity)
	if err != nil {
		leafVPD = vpdVal
	}

	growID, currentStage := l.resolveStage(ctx)

	state := l.actuators.State()
	var targetHumidity *float64
	inRange := false

	if currentStage != "" {
		band, err := stage.ControlBand(currentStage, inside.Temperature)
		if err != nil {
			// unknown stage is a configuration fault: halt before driving
			// actuators off a guessed range
			return err
		}
		mid := (band.Low + band.High) / 2
		targetHumidity = &mid

		targetRange, err := stage.Range(currentStage)
		if err != nil {
			return err
		}
		// the in-range flag grades leaf VPD, the value the plant experiences,
		// not air VPD
		metric := leafVPD
		if targetRange.Metric == stage.MetricHumidity {
			metric = inside.Humidity
		}
		inRange = targetRange.Contains(metric)

		desired := Decide(inside.Humidity, band, l.cfg.Control.HysteresisMargin, state)
		delta := inside.Humidity - outside.Humidity
		desired.Ventilation = DecideVentilation(delta, l.cfg.Control.VentDeltaOn, l.cfg.Control.VentDeltaOff, state.Ventilation)

		changed, applyErr := l.actuators.Apply(ctx, desired)
		if applyErr != nil {
			l.logger.Error("actuator command failed, retrying next cycle", zap.Error(applyErr))
		}
		l.recordTransitions(ctx, now, changed, inside.Humidity, delta)
		state = l.actuators.State()
	}

	snap := &models.Snapshot{
		Timestamp:          now.Unix(),
		Datetime:           now.Format("2006-01-02 15:04:05"),
		Temperature:        inside.Temperature,
		Humidity:           inside.Humidity,
		VPD:                vpdVal,
		OutsideTemperature: outside.Temperature,
		OutsideHumidity:    outside.Humidity,
		LeafTemperature:    leafTemp,
		LeafVPD:            leafVPD,
		VPDInRange:         inRange,
		Stage:              currentStage,
		IndoorSource:       inside.Source,
		Degraded:           degraded,
	}
	if targetHumidity != nil {
		snap.TargetHumidity = *targetHumidity
	}

	// the two sinks are independent failure domains: a cache outage never
	// blocks the durable append, and vice versa
	if err := l.cache.WriteSnapshot(ctx, snap); err != nil {
		l.logger.Warn("realtime cache write failed", zap.Error(err))
	}
	if err := l.cache.RecordHistory(ctx, cache.HistoryPoint{
		Timestamp:   snap.Timestamp,
		Datetime:    snap.Datetime,
		Temperature: snap.Temperature,
		Humidity:    snap.Humidity,
		VPD:         snap.VPD,
	}); err != nil {
		l.logger.Warn("rolling window write failed", zap.Error(err))
	}

	if degraded {
		l.logger.Warn("degraded cycle ran on stale reading, durable append skipped",
			zap.String("indoor_source", inside.Source),
			zap.Time("sampled_at", inside.Timestamp))
	} else {
		rec := &models.SensorRecord{
			GrowID:             growID,
			Timestamp:          snap.Timestamp,
			Datetime:           snap.Datetime,
			Stage:              currentStage,
			Temperature:        inside.Temperature,
			Humidity:           inside.Humidity,
			VPD:                vpdVal,
			OutsideTemperature: outside.Temperature,
			OutsideHumidity:    outside.Humidity,
			LeafTemperature:    &leafTemp,
			LeafVPD:            &leafVPD,
			TargetHumidity:     targetHumidity,
		}
		if _, err := l.store.AppendSensorRecord(ctx, rec); err != nil {
			l.logger.Error("durable write failed, row lost until next cycle", zap.Error(err))
		}
	}

	if l.publisher != nil {
		l.publisher.PublishSnapshot(ctx, snap)
	}
	return nil
}

// readSensors reads both gateways with bounded retries. The indoor sensor is
// required: on failure the last known-good sample is used and the cycle is
// marked degraded; with no known-good sample the cycle is skipped. A failed
// outdoor read falls back to the last outdoor sample, then to the indoor
// values as a neutral proxy (zero ventilation differential).
func (l *Loop) readSensors(ctx context.Context) (inside, outside sensor.Sample, degraded, ok bool) {
	inside, insideErr := l.readWithRetry(ctx, l.inside, "indoor")
	if insideErr == nil {
		l.lastInside = inside
		l.haveInside = true
	} else if l.haveInside {
		inside = l.lastInside
		degraded = true
	} else {
		l.logger.Error("indoor sensor unavailable and no known-good reading, skipping cycle",
			zap.Error(insideErr))
		l.writeSensorStatus(ctx, insideErr, errors.New("not read"), inside, sensor.Sample{})
		return sensor.Sample{}, sensor.Sample{}, false, false
	}

	outside, outsideErr := l.readWithRetry(ctx, l.outside, "outdoor")
	if outsideErr == nil {
		l.lastOutside = outside
		l.haveOutside = true
	} else if l.haveOutside {
		outside = l.lastOutside
	} else {
		outside = inside
	}

	l.writeSensorStatus(ctx, insideErr, outsideErr, inside, outside)
	return inside, outside, degraded, true
}

func (l *Loop) readWithRetry(ctx context.Context, g sensor.Gateway, name string) (sensor.Sample, error) {
	var lastErr error
	for attempt := 1; attempt <= l.cfg.Sensor.MaxRetries; attempt++ {
		sample, err := g.Read(ctx)
		if err == nil {
			return sample, nil
		}
		lastErr = err
		l.logger.Debug("sensor read failed",
			zap.String("sensor", name),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < l.cfg.Sensor.MaxRetries {
			l.sleep(ctx, l.cfg.Sensor.RetryDelay*time.Duration(attempt))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return sensor.Sample{}, lastErr
}

func (l *Loop) resolveStage(ctx context.Context) (growID string, s models.GrowthStage) {
	if l.cfg.Control.StageOverride != "" {
		return "", l.cfg.Control.StageOverride
	}
	grow, err := l.store.ActiveGrow(ctx)
	if errors.Is(err, repository.ErrNoActiveGrow) {
		if !l.warnedNoGrow {
			l.logger.Warn("no active grow, monitoring only until one is created")
			l.warnedNoGrow = true
		}
		return "", ""
	}
	if err != nil {
		l.logger.Error("failed to resolve active grow", zap.Error(err))
		return "", ""
	}
	l.warnedNoGrow = false
	return grow.ID, grow.Stage
}

func (l *Loop) recordTransitions(ctx context.Context, now time.Time, changed []models.Actuator, humidity, delta float64) {
	state := l.actuators.State()
	for _, a := range changed {
		action := "off"
		if state.Get(a) {
			action = "on"
		}
		trigger := humidity
		if a == models.ActuatorVentilation {
			trigger = delta
		}
		ev := &models.ControlEvent{
			Timestamp:    now.Unix(),
			Datetime:     now.Format("2006-01-02 15:04:05"),
			Actuator:     a,
			Action:       action,
			TriggerValue: trigger,
		}
		if id, err := l.store.AppendControlEvent(ctx, ev); err != nil {
			l.logger.Error("failed to persist control event",
				zap.String("actuator", string(a)),
				zap.Error(err))
		} else {
			ev.ID = id
		}
		l.logger.Info("actuator transition",
			zap.String("actuator", string(a)),
			zap.String("action", action),
			zap.Float64("trigger_value", trigger))
		if l.publisher != nil {
			l.publisher.PublishEvent(ctx, ev)
		}
	}
}

func (l *Loop) writeSensorStatus(ctx context.Context, insideErr, outsideErr error, inside, outside sensor.Sample) {
	status := &models.SensorStatus{
		Indoor:  healthFrom(insideErr, inside, l.loc),
		Outdoor: healthFrom(outsideErr, outside, l.loc),
	}
	if err := l.cache.WriteSensorStatus(ctx, status); err != nil {
		l.logger.Warn("sensor status write failed", zap.Error(err))
	}
}

func healthFrom(readErr error, s sensor.Sample, loc *time.Location) models.SensorHealth {
	ok := readErr == nil
	health := models.SensorHealth{OK: &ok, Source: s.Source}
	if readErr != nil {
		health.Error = readErr.Error()
	}
	if !s.Timestamp.IsZero() {
		health.LastUpdate = s.Timestamp.In(loc).Format("2006-01-02 15:04:05")
	}
	return health
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
