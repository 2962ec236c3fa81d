// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/imu_monitor/internal/config"
	"github.com/relabs-tech/imu_monitor/internal/telemetry"
)

// ConsoleFormatter renders one MQTT payload as a console line.
type ConsoleFormatter func(payload []byte) (string, error)

func formatSample(payload []byte) (string, error) {
	var m telemetry.SampleMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"[IMU ] %8d ms  ax=%7.3f ay=%7.3f az=%7.3f  gx=%8.2f gy=%8.2f gz=%8.2f\n",
		m.Timestamp, m.Accel.X, m.Accel.Y, m.Accel.Z, m.Gyro.X, m.Gyro.Y, m.Gyro.Z,
	), nil
}

func formatPose(payload []byte) (string, error) {
	var m telemetry.PoseMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", err
	}
	return fmt.Sprintf("[POSE]  ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f\n", m.Roll, m.Pitch, m.Yaw), nil
}

func formatFix(payload []byte) (string, error) {
	var m telemetry.FixMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"[GPS ]  time=%s date=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f° validity=%s\n",
		m.Time, m.Date, m.Latitude, m.Longitude, m.SpeedKnots, m.CourseDeg, m.Validity,
	), nil
}

// ConsoleTopics maps the configured topics to their formatters.
func ConsoleTopics(cfg *config.Config) map[string]ConsoleFormatter {
	return map[string]ConsoleFormatter{
		cfg.TopicIMU:  formatSample,
		cfg.TopicPose: formatPose,
		cfg.TopicGPS:  formatFix,
	}
}

// RunConsole subscribes to every topic and prints each message to out
// until ctx is done.
func RunConsole(ctx context.Context, client mqtt.Client, topics map[string]ConsoleFormatter, out io.Writer, logger zerolog.Logger) error {
	var mu sync.Mutex // paho may call handlers concurrently

	for topic, format := range topics {
		err := telemetry.Subscribe(client, topic, func(topic string, payload []byte) {
			line, err := format(payload)
			if err != nil {
				logger.Warn().Err(err).Str("topic", topic).Msg("console: unmarshal error")
				return
			}
			mu.Lock()
			io.WriteString(out, line)
			mu.Unlock()
		})
		if err != nil {
			return err
		}
		logger.Info().Str("topic", topic).Msg("console: subscribed")
	}

	<-ctx.Done()
	logger.Info().Msg("console: shutting down")
	return nil
}
