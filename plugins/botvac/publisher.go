package botvac

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// SnapshotPublisher receives a robot's snapshot after every poll.
type SnapshotPublisher interface {
	Publish(ctx context.Context, serial, name string, snap Snapshot) error
	Close()
}

// StateMessage is the retained payload published per robot.
type StateMessage struct {
	Serial     string   `json:"serial"`
	Name       string   `json:"name"`
	StateName  string   `json:"state_name"`
	ActionName string   `json:"action_name"`
	Snapshot   Snapshot `json:"snapshot"`
}

// MQTTPublisher publishes retained state messages to <prefix>/<serial>/state.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
}

func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	broker := strings.TrimSpace(cfg.Broker)
	if broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("gobotvac-" + uuid.New().String()[:8]).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectTimeout(10 * time.Second)
	if strings.HasPrefix(broker, "ssl://") || strings.HasPrefix(broker, "tls://") {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return newMQTTPublisher(client, cfg.TopicPrefix), nil
}

func newMQTTPublisher(client mqtt.Client, prefix string) *MQTTPublisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "gobotvac"
	}
	return &MQTTPublisher{client: client, prefix: prefix}
}

func (p *MQTTPublisher) Topic(serial string) string {
	return p.prefix + "/" + serial + "/state"
}

func (p *MQTTPublisher) Publish(ctx context.Context, serial, name string, snap Snapshot) error {
	payload, err := json.Marshal(StateMessage{
		Serial:     serial,
		Name:       name,
		StateName:  snap.StateName(),
		ActionName: snap.ActionName(),
		Snapshot:   snap,
	})
	if err != nil {
		return fmt.Errorf("encode state message: %w", err)
	}

	token := p.client.Publish(p.Topic(serial), 1, true, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
