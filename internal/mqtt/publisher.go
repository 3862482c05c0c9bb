// Package mqtt publishes engine output to an MQTT broker. Publishing is
// optional and fire-and-forget: a slow or absent broker never stalls the
// control loop.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/jereantequera/Autocann/internal/config"
	"github.com/jereantequera/Autocann/internal/models"
)

// Publisher pushes snapshots, control events and alerts to the broker
// under the configured topic prefix.
type Publisher struct {
	client paho.Client
	prefix string
	qos    byte
	logger *zap.Logger
}

// NewPublisher connects to the broker. The connection auto-reconnects; a
// broker that is down at startup is an error so misconfiguration surfaces
// immediately.
func NewPublisher(cfg config.MQTTConfig, logger *zap.Logger) (*Publisher, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}

	return &Publisher{
		client: client,
		prefix: cfg.TopicPrefix,
		qos:    cfg.QoS,
		logger: logger,
	}, nil
}

// PublishSnapshot sends the cycle snapshot as a retained message so late
// subscribers see the current state immediately.
func (p *Publisher) PublishSnapshot(ctx context.Context, snap *models.Snapshot) {
	p.publish(p.prefix+"/sensors", true, snap)
}

// PublishEvent sends an actuator transition.
func (p *Publisher) PublishEvent(ctx context.Context, ev *models.ControlEvent) {
	p.publish(p.prefix+"/events", false, ev)
}

// PublishAlert sends a detected anomaly.
func (p *Publisher) PublishAlert(ctx context.Context, anomaly *models.Anomaly) {
	p.publish(p.prefix+"/alerts", false, anomaly)
}

func (p *Publisher) publish(topic string, retained bool, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("marshal MQTT payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	token := p.client.Publish(topic, p.qos, retained, data)
	go func() {
		if token.Wait(); token.Error() != nil {
			p.logger.Warn("MQTT publish failed",
				zap.String("topic", topic),
				zap.Error(token.Error()))
		}
	}()
}

// Close flushes in-flight messages and disconnects.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
