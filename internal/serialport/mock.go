// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialport

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// MockDeviceName is the single device exposed by the mock backend.
const MockDeviceName = "mock0"

// MockPeriod is the interval between simulated telemetry lines.
const MockPeriod = 20 * time.Millisecond

// ErrPortClosed is returned by reads on a closed mock port.
var ErrPortClosed = errors.New("serial port closed")

// MockBackend simulates an IMU that prints telemetry lines with smoothly
// changing values, a model result every second and an RMC sentence every
// five seconds.
type MockBackend struct {
	name string
}

func NewMockBackend(name string) *MockBackend {
	return &MockBackend{name: name}
}

func (b *MockBackend) List() ([]string, error) {
	return []string{b.name}, nil
}

func (b *MockBackend) Open(name string, mode Mode) (Port, error) {
	if name != b.name {
		return nil, fmt.Errorf("open %s: no such device", name)
	}
	now := time.Now()
	return &mockPort{
		timeout: mode.ReadTimeout,
		start:   now,
		next:    now,
	}, nil
}

type mockPort struct {
	timeout time.Duration
	start   time.Time

	mu      sync.Mutex
	next    time.Time
	seq     int
	pending []byte
	closed  bool
}

func (p *mockPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrPortClosed
	}
	if len(p.pending) == 0 {
		wait := time.Until(p.next)
		if p.timeout > 0 && wait > p.timeout {
			p.mu.Unlock()
			time.Sleep(p.timeout)
			return 0, nil
		}
		p.pending = []byte(p.lineLocked())
		p.next = p.next.Add(MockPeriod)
		p.mu.Unlock()

		if wait > 0 {
			time.Sleep(wait)
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return 0, ErrPortClosed
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	p.mu.Unlock()
	return n, nil
}

func (p *mockPort) lineLocked() string {
	p.seq++
	elapsed := p.next.Sub(p.start)
	ms := elapsed.Milliseconds()
	s := elapsed.Seconds()

	perSecond := int(time.Second / MockPeriod)
	switch {
	case p.seq%(5*perSecond) == 0:
		return "$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*70\r\n"
	case p.seq%perSecond == 0:
		return fmt.Sprintf("[Res] idle %.2f\r\n", 0.5+0.5*math.Abs(math.Sin(s)))
	}

	return fmt.Sprintf("[IMU] [%6d ms], Acc: [%6.3f, %6.3f, %6.3f] G, Gyro: [%8.2f, %8.2f, %8.2f] DPS\r\n",
		ms,
		0.35*math.Sin(s), 0.35*math.Cos(s*0.7), 1.0,
		20*math.Cos(s), -15*0.7*math.Sin(s*0.7), 30.0,
	)
}

func (p *mockPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	return len(b), nil
}

func (p *mockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
