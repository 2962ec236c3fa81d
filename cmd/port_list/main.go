// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/relabs-tech/imu_monitor/internal/app"
	"github.com/relabs-tech/imu_monitor/internal/config"
	"github.com/relabs-tech/imu_monitor/internal/link"
	"github.com/relabs-tech/imu_monitor/internal/portscan"
	"github.com/relabs-tech/imu_monitor/internal/serialport"
)

func main() {
	bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	backendName := pflag.String("backend", config.BackendBugST, "serial backend: bugst, jacobsa or mock")
	watch := pflag.BoolP("watch", "w", false, "keep running and print the port set whenever it changes")
	tail := pflag.StringP("tail", "t", "", "connect to this port and print every line received")
	baud := pflag.IntP("baud", "b", 115200, "baud rate for --tail")
	interval := pflag.Duration("interval", time.Second, "port scan interval")
	pflag.Parse()

	logger, err := app.NewLogger(os.Stderr, "info", "console", "port-list")
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to build logger")
	}

	backend, err := serialport.NewBackend(*backendName)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid serial backend")
	}
	registry := portscan.NewRegistry(backend, logger)

	for _, p := range registry.List().Sorted() {
		fmt.Println(p)
	}
	if !*watch && *tail == "" {
		return
	}

	cfg := link.DefaultConfig()
	cfg.ScanInterval = *interval
	l := link.New(backend, registry, cfg, logger)
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *tail != "" {
		if err := l.Connect(*tail, *baud); err != nil {
			logger.Fatal().Err(err).Msg("connect failed")
		}
	}

	link.Dispatch(ctx, l.Events(), link.Handlers{
		OnLine: func(_, text string) {
			fmt.Print(text)
		},
		OnLog: func(message string) {
			fmt.Fprint(os.Stderr, message)
		},
		OnPortsChanged: func(ports []string) {
			fmt.Printf("ports changed: %v\n", ports)
		},
	})
}
