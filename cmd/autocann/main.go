package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/jereantequera/Autocann/internal/actuator"
	"github.com/jereantequera/Autocann/internal/analytics"
	"github.com/jereantequera/Autocann/internal/cache"
	"github.com/jereantequera/Autocann/internal/config"
	"github.com/jereantequera/Autocann/internal/control"
	"github.com/jereantequera/Autocann/internal/httpapi"
	"github.com/jereantequera/Autocann/internal/logger"
	"github.com/jereantequera/Autocann/internal/mqtt"
	"github.com/jereantequera/Autocann/internal/repository"
	"github.com/jereantequera/Autocann/internal/sensor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load configuration", zap.Error(err))
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	defer log.Sync()

	store, err := repository.NewStore(cfg.Database.Path, log)
	if err != nil {
		log.Fatal("open database", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer store.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatal("connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	pingCancel()

	c := cache.New(rdb, log)
	actuators := actuator.NewGateway(actuator.NopDriver{}, rdb, log)

	inside, outside := buildSensors(cfg, rdb, log)

	engine := analytics.NewEngine(store, log, cfg.Location())

	var publisher control.Publisher
	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewPublisher(cfg.MQTT, log)
		if err != nil {
			log.Fatal("connect to MQTT broker", zap.Error(err))
		}
		defer pub.Close()
		publisher = pub
		log.Info("MQTT publishing enabled",
			zap.String("broker", cfg.MQTT.Broker),
			zap.String("prefix", cfg.MQTT.TopicPrefix))
	}

	loop := control.NewLoop(cfg, log, store, c, actuators, inside, outside, publisher)

	server := httpapi.NewServer(store, c, engine, log, cfg.Location())
	router := httpapi.NewRouter(log)
	router.Register(server)
	srv := &http.Server{
		Addr:         cfg.HTTP.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 2)
	loopStopped := make(chan struct{})
	go func() {
		log.Info("control loop starting",
			zap.Duration("poll_interval", cfg.Control.PollInterval),
			zap.String("sensor_mode", cfg.Sensor.Mode))
		errCh <- loop.Run(ctx)
		close(loopStopped)
	}()
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.HTTP.ListenAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go runRetention(ctx, cfg, store, log)
	if pub, ok := publisher.(*mqtt.Publisher); ok {
		go runAlerts(ctx, engine, pub, log)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("fatal error, shutting down", zap.Error(err))
		}
	}
	cancel()

	// join the in-flight cycle before touching outputs: a cycle that started
	// before the signal may still reach Apply, which would re-engage a relay
	// behind AllOff
	joinLoop(loopStopped, 15*time.Second, log)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := actuators.AllOff(shutdownCtx); err != nil {
		log.Warn("failed to switch outputs off on shutdown", zap.Error(err))
	}
	log.Info("shutdown complete")
}

// buildSensors wires the indoor and outdoor gateways per the configured
// sensor mode. The outdoor sensor has no hardware yet; the loop falls back
// to the indoor reading when it fails, so a permanent failure is a working
// single-sensor deployment.
func buildSensors(cfg *config.Config, rdb *redis.Client, log *zap.Logger) (inside, outside sensor.Gateway) {
	switch cfg.Sensor.Mode {
	case "http":
		if cfg.Sensor.ESP32URL == "" {
			log.Fatal("sensor mode 'http' requires AUTOCANN_ESP32_URL")
		}
		inside = sensor.NewESP32Sensor(cfg.Sensor.ESP32URL, cfg.Sensor.ReadTimeout)
	case "cache":
		inside = sensor.NewCachedSensor(rdb, cfg.Sensor.MaxAge)
	default:
		log.Fatal("unknown sensor mode", zap.String("mode", cfg.Sensor.Mode))
	}

	outside = sensor.GatewayFunc(func(ctx context.Context) (sensor.Sample, error) {
		return sensor.Sample{}, &sensor.Error{
			Kind:   sensor.KindTimeout,
			Sensor: "outdoor",
			Err:    errors.New("no outdoor sensor attached"),
		}
	})
	return inside, outside
}

// joinLoop waits for the control loop goroutine to finish its in-flight
// cycle so nothing can drive an actuator after outputs are forced off.
func joinLoop(stopped <-chan struct{}, timeout time.Duration, log *zap.Logger) {
	select {
	case <-stopped:
	case <-time.After(timeout):
		log.Warn("control loop did not stop in time, forcing outputs off anyway")
	}
}

// runAlerts sweeps the last hour for anomalies and publishes criticals to
// the broker. Re-publishing a still-open anomaly on the next sweep is fine;
// subscribers treat alerts as state, not edges.
func runAlerts(ctx context.Context, engine *analytics.Engine, pub *mqtt.Publisher, log *zap.Logger) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := engine.DetectAnomalies(ctx, 1, "")
			if err != nil {
				log.Error("anomaly sweep failed", zap.Error(err))
				continue
			}
			for i := range report.Anomalies {
				pub.PublishAlert(ctx, &report.Anomalies[i])
			}
		}
	}
}

// runRetention prunes durable rows older than the retention window on a
// fixed interval. Days <= 0 disables pruning.
func runRetention(ctx context.Context, cfg *config.Config, store *repository.Store, log *zap.Logger) {
	if cfg.Retention.Days <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.Retention.PruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -cfg.Retention.Days).Unix()
			if _, err := store.Prune(ctx, cutoff); err != nil {
				log.Error("retention prune failed", zap.Error(err))
			}
		}
	}
}
