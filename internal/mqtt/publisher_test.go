package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jereantequera/Autocann/internal/models"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	paho.Client

	mu       sync.Mutex
	messages []published
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload any) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic, retained, payload.([]byte)})
	return &fakeToken{}
}

func (c *fakeClient) all() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.messages...)
}

func newTestPublisher() (*Publisher, *fakeClient) {
	client := &fakeClient{}
	return &Publisher{
		client: client,
		prefix: "autocann",
		qos:    1,
		logger: zap.NewNop(),
	}, client
}

func TestPublishSnapshotRetained(t *testing.T) {
	p, client := newTestPublisher()

	p.PublishSnapshot(context.Background(), &models.Snapshot{
		Timestamp:   1700000000,
		Temperature: 24.5,
		Humidity:    58.0,
		VPD:         1.28,
		Stage:       models.StageFlowering,
	})

	msgs := client.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "autocann/sensors", msgs[0].topic)
	assert.True(t, msgs[0].retained)

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(msgs[0].payload, &snap))
	assert.Equal(t, 24.5, snap.Temperature)
}

func TestPublishEventAndAlert(t *testing.T) {
	p, client := newTestPublisher()

	p.PublishEvent(context.Background(), &models.ControlEvent{
		Actuator: models.ActuatorHumidifier,
		Action:   "on",
	})
	p.PublishAlert(context.Background(), &models.Anomaly{
		Type:     "temperature_spike",
		Severity: models.SeverityCritical,
		Message:  "temperature jumped 13.0°C in 5 minutes",
	})

	msgs := client.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, "autocann/events", msgs[0].topic)
	assert.False(t, msgs[0].retained)
	assert.Equal(t, "autocann/alerts", msgs[1].topic)
}
