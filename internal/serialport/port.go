// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package serialport abstracts opening and enumerating serial devices so
// the link can run against real hardware, a simulator, or test fakes.
package serialport

import (
	"fmt"
	"io"
	"time"

	"github.com/relabs-tech/imu_monitor/internal/config"
)

// Port is an open device handle. Read must return (0, nil) when the
// configured read timeout elapses without data.
type Port interface {
	io.ReadWriteCloser
}

// Mode is the line configuration for Open. A zero BaudRate lets the
// backend pick its default; a zero ReadTimeout blocks until data arrives.
type Mode struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// Opener opens serial devices by name.
type Opener interface {
	Open(name string, mode Mode) (Port, error)
}

// Lister enumerates the serial devices currently attached.
type Lister interface {
	List() ([]string, error)
}

// Backend is an Opener that can also enumerate devices.
type Backend interface {
	Opener
	Lister
}

// NewBackend returns the backend named by config.SERIAL_BACKEND.
func NewBackend(name string) (Backend, error) {
	switch name {
	case config.BackendBugST:
		return BugST{}, nil
	case config.BackendJacobsa:
		return Jacobsa{}, nil
	case config.BackendMock:
		return NewMockBackend(MockDeviceName), nil
	default:
		return nil, fmt.Errorf("unknown serial backend %q", name)
	}
}
