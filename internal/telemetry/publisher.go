// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry publishes decoded samples, poses and GPS fixes over MQTT.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/imu_monitor/internal/gps"
	"github.com/relabs-tech/imu_monitor/internal/imu"
	"github.com/relabs-tech/imu_monitor/internal/orientation"
)

const (
	publishTimeout = 2 * time.Second
	disconnectWait = 250 // ms
)

// SampleMessage is the payload published on TOPIC_IMU.
type SampleMessage struct {
	Session string `json:"session"`
	Port    string `json:"port"`
	imu.Sample
}

// PoseMessage is the payload published on TOPIC_POSE.
type PoseMessage struct {
	Session string `json:"session"`
	TimeMS  int64  `json:"time_ms"`
	orientation.Pose
}

// FixMessage is the payload published on TOPIC_GPS.
type FixMessage struct {
	Session string `json:"session"`
	gps.Fix
}

// Publisher sends JSON payloads to topics.
type Publisher interface {
	Publish(topic string, payload any) error
	Close()
}

// Nop discards everything. It stands in when no broker is configured.
type Nop struct{}

func (Nop) Publish(string, any) error { return nil }
func (Nop) Close() {}

// MQTT publishes retained JSON messages with QoS 0.
type MQTT struct {
	client mqtt.Client
	logger zerolog.Logger
}

// Connect dials broker and waits for the session to come up.
func Connect(broker, clientID string, logger zerolog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn().Err(err).Str("broker", broker).Msg("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	logger.Info().Str("broker", broker).Str("client_id", clientID).Msg("connected to MQTT broker")
	return client, nil
}

// Dial connects to broker and returns a ready publisher.
func Dial(broker, clientID string, logger zerolog.Logger) (*MQTT, error) {
	client, err := Connect(broker, clientID, logger)
	if err != nil {
		return nil, err
	}
	return NewMQTT(client, logger), nil
}

// NewMQTT wraps an already connected client.
func NewMQTT(client mqtt.Client, logger zerolog.Logger) *MQTT {
	return &MQTT{client: client, logger: logger}
}

func (m *MQTT) Publish(topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("json marshal (%s): %w", topic, err)
	}
	token := m.client.Publish(topic, 0, true, body)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("MQTT publish (%s): timed out after %s", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish (%s): %w", topic, err)
	}
	return nil
}

func (m *MQTT) Close() {
	m.client.Disconnect(disconnectWait)
}

// Subscribe registers handler for topic and waits for the broker's ack.
func Subscribe(client mqtt.Client, topic string, handler func(topic string, payload []byte)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}
