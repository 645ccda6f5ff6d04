package botvac

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type publishedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeMQTT records publishes; the embedded interface panics on anything else.
type fakeMQTT struct {
	mqtt.Client

	mu           sync.Mutex
	messages     []publishedMessage
	disconnected bool
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, publishedMessage{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return doneToken{}
}

func (f *fakeMQTT) Disconnect(uint) {
	f.mu.Lock()
	f.disconnected = true
	f.mu.Unlock()
}

func TestMQTTPublisherTopicAndPayload(t *testing.T) {
	client := &fakeMQTT{}
	publisher := newMQTTPublisher(client, "/home/vacuums/")
	assert.Equal(t, "home/vacuums/OPS01/state", publisher.Topic("OPS01"))

	snap := Snapshot{Refreshed: true, State: 2, Action: 1, Charge: 64}
	require.NoError(t, publisher.Publish(context.Background(), "OPS01", "Kitchen", snap))

	require.Len(t, client.messages, 1)
	msg := client.messages[0]
	assert.Equal(t, "home/vacuums/OPS01/state", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)

	var decoded StateMessage
	require.NoError(t, json.Unmarshal(msg.payload, &decoded))
	assert.Equal(t, "Kitchen", decoded.Name)
	assert.Equal(t, "busy", decoded.StateName)
	assert.Equal(t, "house_cleaning", decoded.ActionName)
	assert.Equal(t, 64.0, decoded.Snapshot.Charge)

	publisher.Close()
	assert.True(t, client.disconnected)
}

func TestMQTTPublisherDefaultPrefix(t *testing.T) {
	publisher := newMQTTPublisher(&fakeMQTT{}, "")
	assert.Equal(t, "gobotvac/OPS01/state", publisher.Topic("OPS01"))
}

func TestNewMQTTPublisherRequiresBroker(t *testing.T) {
	_, err := NewMQTTPublisher(MQTTConfig{})
	assert.Error(t, err)
}
