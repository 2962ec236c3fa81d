// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/relabs-tech/imu_monitor/internal/app"
	"github.com/relabs-tech/imu_monitor/internal/config"
	"github.com/relabs-tech/imu_monitor/internal/record"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to KEY=VALUE config file")
	dir := pflag.StringP("dir", "d", "", "recordings folder (overrides SAVEDATA_DIR)")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if *dir != "" {
		cfg.SaveDataDir = *dir
	}

	// remaining arguments select gestures
	if err := app.WriteRecordingReport(os.Stdout, record.NewStore(cfg.SaveDataDir), pflag.Args()); err != nil {
		logger.Fatal().Err(err).Msg("report failed")
	}
}
