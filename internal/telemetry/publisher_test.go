package telemetry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/imu_monitor/internal/imu"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeClient records publishes; methods it does not override panic.
type fakeClient struct {
	mqtt.Client
	err          error
	published    []published
	subscribed   []string
	handler      mqtt.MessageHandler
	disconnected bool
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return doneToken{err: c.err}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.subscribed = append(c.subscribed, topic)
	c.handler = cb
	return doneToken{err: c.err}
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func TestMQTT_PublishSample(t *testing.T) {
	client := &fakeClient{}
	pub := NewMQTT(client, zerolog.Nop())

	msg := SampleMessage{
		Session: "s1",
		Port:    "ttyUSB0",
		Sample: imu.Sample{
			Timestamp: 120,
			Accel:     imu.Vector{X: 0.1, Y: -0.2, Z: 1},
			Gyro:      imu.Vector{X: 10, Y: -20.5},
		},
	}
	require.NoError(t, pub.Publish("inertial/imu/serial", msg))

	require.Len(t, client.published, 1)
	assert.Equal(t, "inertial/imu/serial", client.published[0].topic)
	assert.True(t, client.published[0].retained)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(client.published[0].payload, &decoded))
	assert.Equal(t, "s1", decoded["session"])
	assert.Equal(t, 120.0, decoded["time_ms"])
	assert.Equal(t, -20.5, decoded["gyro"].(map[string]any)["y"])

	pub.Close()
	assert.True(t, client.disconnected)
}

func TestMQTT_PublishError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	err := NewMQTT(client, zerolog.Nop()).Publish("t", PoseMessage{})
	assert.ErrorContains(t, err, "not connected")
}

func TestMQTT_MarshalError(t *testing.T) {
	client := &fakeClient{}
	err := NewMQTT(client, zerolog.Nop()).Publish("t", func() {})
	assert.Error(t, err)
	assert.Empty(t, client.published)
}

func TestSubscribe(t *testing.T) {
	client := &fakeClient{}
	var gotTopic string
	var gotPayload []byte

	require.NoError(t, Subscribe(client, "inertial/pose", func(topic string, payload []byte) {
		gotTopic, gotPayload = topic, payload
	}))
	assert.Equal(t, []string{"inertial/pose"}, client.subscribed)

	client.handler(client, fakeMessage{topic: "inertial/pose", payload: []byte(`{}`)})
	assert.Equal(t, "inertial/pose", gotTopic)
	assert.Equal(t, []byte(`{}`), gotPayload)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish("t", 1))
	p.Close()
}
