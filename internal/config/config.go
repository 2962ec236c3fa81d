// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Serial backends understood by serialport.NewBackend.
const (
	BackendBugST   = "bugst"
	BackendJacobsa = "jacobsa"
	BackendMock    = "mock"
)

// Config holds all application configuration values.
type Config struct {
	// Serial link
	SerialPort          string        `mapstructure:"serial_port"`
	SerialBaudRate      int           `mapstructure:"serial_baud_rate"`
	SerialBackend       string        `mapstructure:"serial_backend"`
	SerialReadTimeout   time.Duration `mapstructure:"serial_read_timeout"`
	SerialIdlePoll      time.Duration `mapstructure:"serial_idle_poll"`
	PortScanInterval    time.Duration `mapstructure:"port_scan_interval"`
	JoinTimeout         time.Duration `mapstructure:"join_timeout"`
	EventQueueSize      int           `mapstructure:"event_queue_size"`
	ReadLoopMaxRestarts int           `mapstructure:"read_loop_max_restarts"`
	ReadLoopBackoff     time.Duration `mapstructure:"read_loop_restart_backoff"`

	// Sample windows
	WindowMaxSamples int   `mapstructure:"window_max_samples"`
	WindowTimespanMS int64 `mapstructure:"window_timespan_ms"`

	// Recordings
	SaveDataDir   string `mapstructure:"savedata_dir"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`

	// MQTT
	MQTTBroker   string `mapstructure:"mqtt_broker"`
	MQTTClientID string `mapstructure:"mqtt_client_id"`
	TopicIMU     string `mapstructure:"topic_imu"`
	TopicPose    string `mapstructure:"topic_pose"`
	TopicGPS     string `mapstructure:"topic_gps"`

	// Web Server
	WebServerPort int `mapstructure:"web_server_port"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Load reads a KEY=VALUE configuration file and returns a Config struct.
// Every key can be overridden from the environment as IMU_<KEY>. An empty
// path yields defaults plus environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IMU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial_port", "")
	v.SetDefault("serial_baud_rate", 115200)
	v.SetDefault("serial_backend", BackendBugST)
	v.SetDefault("serial_read_timeout", time.Second)
	v.SetDefault("serial_idle_poll", 50*time.Millisecond)
	v.SetDefault("port_scan_interval", time.Second)
	v.SetDefault("join_timeout", time.Second)
	v.SetDefault("event_queue_size", 256)
	v.SetDefault("read_loop_max_restarts", 5)
	v.SetDefault("read_loop_restart_backoff", 100*time.Millisecond)

	v.SetDefault("window_max_samples", 120)
	v.SetDefault("window_timespan_ms", 0)

	v.SetDefault("savedata_dir", "./savedata")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("postgres_table", "imu_samples")

	v.SetDefault("mqtt_broker", "")
	v.SetDefault("mqtt_client_id", "imu-monitor")
	v.SetDefault("topic_imu", "inertial/imu/serial")
	v.SetDefault("topic_pose", "inertial/pose")
	v.SetDefault("topic_gps", "inertial/gps")

	v.SetDefault("web_server_port", 8080)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// validate checks ranges and required combinations.
func (c *Config) validate() error {
	if c.SerialBaudRate <= 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE must be positive, got %d", c.SerialBaudRate)
	}
	switch c.SerialBackend {
	case BackendBugST, BackendJacobsa, BackendMock:
	default:
		return fmt.Errorf("SERIAL_BACKEND must be one of %s, %s, %s, got %q",
			BackendBugST, BackendJacobsa, BackendMock, c.SerialBackend)
	}
	if c.SerialReadTimeout <= 0 {
		return fmt.Errorf("SERIAL_READ_TIMEOUT must be positive, got %s", c.SerialReadTimeout)
	}
	if c.SerialIdlePoll <= 0 {
		return fmt.Errorf("SERIAL_IDLE_POLL must be positive, got %s", c.SerialIdlePoll)
	}
	if c.PortScanInterval <= 0 {
		return fmt.Errorf("PORT_SCAN_INTERVAL must be positive, got %s", c.PortScanInterval)
	}
	if c.JoinTimeout <= 0 {
		return fmt.Errorf("JOIN_TIMEOUT must be positive, got %s", c.JoinTimeout)
	}
	if c.EventQueueSize <= 0 {
		return fmt.Errorf("EVENT_QUEUE_SIZE must be positive, got %d", c.EventQueueSize)
	}
	if c.ReadLoopMaxRestarts < 0 {
		return fmt.Errorf("READ_LOOP_MAX_RESTARTS must be >= 0, got %d", c.ReadLoopMaxRestarts)
	}
	if c.WindowMaxSamples < 0 {
		return fmt.Errorf("WINDOW_MAX_SAMPLES must be >= 0, got %d", c.WindowMaxSamples)
	}
	if c.WindowTimespanMS < 0 {
		return fmt.Errorf("WINDOW_TIMESPAN_MS must be >= 0, got %d", c.WindowTimespanMS)
	}
	if c.SaveDataDir == "" {
		return fmt.Errorf("SAVEDATA_DIR is required")
	}
	if c.MQTTBroker != "" && c.MQTTClientID == "" {
		return fmt.Errorf("MQTT_CLIENT_ID is required when MQTT_BROKER is set")
	}
	if c.PostgresDSN != "" && c.PostgresTable == "" {
		return fmt.Errorf("POSTGRES_TABLE is required when POSTGRES_DSN is set")
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 0-65535, got %d", c.WebServerPort)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}
