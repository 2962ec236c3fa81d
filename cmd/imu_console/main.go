// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/relabs-tech/imu_monitor/internal/app"
	"github.com/relabs-tech/imu_monitor/internal/config"
	"github.com/relabs-tech/imu_monitor/internal/telemetry"
)

func main() {
	bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	configPath := pflag.StringP("config", "c", "", "path to KEY=VALUE config file")
	broker := pflag.String("broker", "tcp://localhost:1883", "MQTT broker (overrides MQTT_BROKER)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	if pflag.CommandLine.Changed("broker") || cfg.MQTTBroker == "" {
		cfg.MQTTBroker = *broker
	}

	logger, err := app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat, "imu-console")
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to build logger")
	}

	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientID+"-console", logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("MQTT connect error")
	}
	defer client.Disconnect(250)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsole(ctx, client, app.ConsoleTopics(cfg), os.Stdout, logger); err != nil {
		logger.Fatal().Err(err).Msg("console failed")
	}
}
