// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/relabs-tech/imu_monitor/internal/app"
	"github.com/relabs-tech/imu_monitor/internal/config"
	"github.com/relabs-tech/imu_monitor/internal/record"
	"github.com/relabs-tech/imu_monitor/internal/serialport"
	"github.com/relabs-tech/imu_monitor/internal/telemetry"
)

const defaultConfigPath = "imu_config.txt"

func main() {
	bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	configPath := pflag.StringP("config", "c", defaultConfigPath, "path to KEY=VALUE config file")
	port := pflag.StringP("port", "p", "", "serial port to connect at startup (overrides SERIAL_PORT)")
	baud := pflag.IntP("baud", "b", 0, "baud rate (overrides SERIAL_BAUD_RATE)")
	backend := pflag.String("backend", "", "serial backend: bugst, jacobsa or mock (overrides SERIAL_BACKEND)")
	pflag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	if *port != "" {
		cfg.SerialPort = *port
	}
	if *baud > 0 {
		cfg.SerialBaudRate = *baud
	}
	if *backend != "" {
		cfg.SerialBackend = *backend
	}

	logger, err := app.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat, "imu-monitor")
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to build logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := serialport.NewBackend(cfg.SerialBackend)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid serial backend")
	}
	deps := app.Deps{Backend: be}

	if cfg.MQTTBroker != "" {
		pub, err := telemetry.Dial(cfg.MQTTBroker, cfg.MQTTClientID, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("MQTT connect error")
		}
		deps.Publisher = pub
	}

	if cfg.PostgresDSN != "" {
		sink, err := record.OpenPostgres(ctx, cfg.PostgresDSN, cfg.PostgresTable)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connect error")
		}
		defer sink.Close()
		if err := sink.EnsureTable(ctx); err != nil {
			logger.Fatal().Err(err).Msg("postgres schema error")
		}
		deps.Sink = sink
	}

	monitor := app.NewMonitor(cfg, deps, logger)
	defer monitor.Close()
	go monitor.Run(ctx)

	logger.Info().
		Str("backend", cfg.SerialBackend).
		Strs("ports", monitor.Link().Ports()).
		Msg("imu monitor started")

	if cfg.SerialPort != "" {
		if err := monitor.Connect(cfg.SerialPort, cfg.SerialBaudRate); err != nil {
			logger.Error().Err(err).Msg("initial connect failed, waiting for API connect")
		}
	}

	if cfg.WebServerPort > 0 {
		if err := app.RunWeb(ctx, cfg.WebServerPort, app.Handler(monitor, logger), logger); err != nil {
			logger.Error().Err(err).Msg("web server stopped")
		}
	} else {
		<-ctx.Done()
	}

	logger.Info().Msg("shutting down")
}

// loadConfig falls back to defaults and environment when the default
// config file is absent.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	return config.Load(path)
}
