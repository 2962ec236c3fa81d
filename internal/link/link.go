// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package link owns one serial device handle at a time and turns the bytes
// it produces into line, log and port-set events.
//
// A single supervised read loop serves every connection made through a
// Link. Reads hold the handle's read lock for one bounded read, so
// Disconnect waits at most one read timeout before the handle is closed.
package link

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/imu_monitor/internal/portscan"
	"github.com/relabs-tech/imu_monitor/internal/serialport"
)

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("serial link closed")

// ConnectError reports a failed connect attempt. The link stays
// disconnected.
type ConnectError struct {
	Port string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("could not open port [%s]: %v", e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Config holds the link's timing and queueing parameters.
type Config struct {
	ReadTimeout   time.Duration
	IdlePoll      time.Duration
	ScanInterval  time.Duration
	JoinTimeout   time.Duration
	EventBuffer   int
	MaxLineLength int
	Restart       RestartPolicy
}

// DefaultConfig returns the timings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:   time.Second,
		IdlePoll:      50 * time.Millisecond,
		ScanInterval:  time.Second,
		JoinTimeout:   time.Second,
		EventBuffer:   256,
		MaxLineLength: DefaultMaxLineLength,
		Restart:       RestartPolicy{MaxRestarts: 5, Backoff: 100 * time.Millisecond},
	}
}

// Link is the serial link. Create it with New and release it with Close.
type Link struct {
	opener   serialport.Opener
	registry *portscan.Registry
	cfg      Config
	logger   zerolog.Logger

	events chan Event
	done   chan struct{}

	// mu guards the handle: reads take RLock, connect/disconnect take Lock.
	mu       sync.RWMutex
	port     serialport.Port
	portName string
	conn     uint64
	reader   *lineReader

	loopMu sync.Mutex
	loop   *supervisor

	watcher   *portscan.Watcher
	restarts  atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
}

// New creates a disconnected link and starts watching the port set.
func New(opener serialport.Opener, registry *portscan.Registry, cfg Config, logger zerolog.Logger) *Link {
	def := DefaultConfig()
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = def.IdlePoll
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = def.ScanInterval
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = def.JoinTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}

	l := &Link{
		opener:   opener,
		registry: registry,
		cfg:      cfg,
		logger:   logger.With().Str("component", "serial_link").Logger(),
		events:   make(chan Event, cfg.EventBuffer),
		done:     make(chan struct{}),
		reader:   newLineReader(cfg.MaxLineLength),
	}

	if registry != nil {
		l.watcher = registry.Watch(cfg.ScanInterval, func(ports portscan.PortSet) {
			l.emit(Event{Kind: EventPorts, Ports: ports.Sorted()})
		})
	}

	return l
}

// Events is the bounded event queue. It is never closed; stop reading
// when Done is closed.
func (l *Link) Events() <-chan Event { return l.events }

// Done is closed by Close.
func (l *Link) Done() <-chan struct{} { return l.done }

// Ports lists the devices visible right now.
func (l *Link) Ports() []string {
	if l.registry == nil {
		return nil
	}
	return l.registry.List().Sorted()
}

// Connect opens name at baudRate. An open handle is closed first. The
// device is opened and closed once to pulse its reset line before the
// real open.
func (l *Link) Connect(name string, baudRate int) error {
	if l.closed.Load() {
		return ErrClosed
	}

	previous, err := l.swapPort(name, baudRate)
	if err != nil {
		l.logDisconnected(previous)
		return &ConnectError{Port: name, Err: err}
	}

	l.logDisconnected(previous)
	l.logger.Info().Str("port", name).Int("baud", baudRate).Msg("serial port connected")
	l.emit(Event{Kind: EventLog, Port: name, Cause: CauseConnected,
		Text: fmt.Sprintf("Port [%s] Connected\n", name)})

	l.ensureReadLoop()
	return nil
}

// Disconnect closes the handle if one is open. It is a no-op otherwise.
func (l *Link) Disconnect() {
	l.logDisconnected(l.release(nil))
}

// Connected reports whether a handle is open.
func (l *Link) Connected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.port != nil
}

// Port returns the connected device name, or "" when disconnected.
func (l *Link) Port() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.port == nil {
		return ""
	}
	return l.portName
}

// Conn is the sequence number of the latest successful Connect, 0 before
// the first. Line events carry the number they were read under, so
// consumers can drop lines queued before a reconnect.
func (l *Link) Conn() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.conn
}

// Restarts counts read loop crashes over the link's lifetime.
func (l *Link) Restarts() int64 { return l.restarts.Load() }

// LoopState reports the read loop's state. It is LoopStopped before the
// first connect.
func (l *Link) LoopState() LoopState {
	l.loopMu.Lock()
	defer l.loopMu.Unlock()
	if l.loop == nil {
		return LoopStopped
	}
	return l.loop.State()
}

// Close stops both background tasks, disconnects and waits up to
// JoinTimeout for each task. Overruns are logged, not returned.
func (l *Link) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
		l.Disconnect()

		if l.watcher != nil {
			if !l.watcher.Wait(l.cfg.JoinTimeout) {
				l.logger.Warn().Dur("timeout", l.cfg.JoinTimeout).Msg("port watcher did not exit in time")
			}
		}

		l.loopMu.Lock()
		loop := l.loop
		l.loopMu.Unlock()
		if loop != nil {
			select {
			case <-loop.Exited():
			case <-time.After(l.cfg.JoinTimeout):
				l.logger.Warn().Dur("timeout", l.cfg.JoinTimeout).Msg("read loop did not exit in time")
			}
		}
	})
}

// swapPort closes the current handle, pulses name and opens it at
// baudRate. It returns the name of the closed handle, or "".
func (l *Link) swapPort(name string, baudRate int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	previous := l.closePortLocked()

	pulse, err := l.opener.Open(name, serialport.Mode{})
	if err != nil {
		return previous, err
	}
	if err := closePort(pulse); err != nil {
		l.logger.Debug().Err(err).Str("port", name).Msg("reset pulse close failed")
	}

	port, err := l.opener.Open(name, serialport.Mode{BaudRate: baudRate, ReadTimeout: l.cfg.ReadTimeout})
	if err != nil {
		return previous, err
	}
	l.port = port
	l.portName = name
	l.conn++
	l.reader.reset()
	return previous, nil
}

// release closes the handle when it is current, or any handle when
// current is nil. It returns the closed handle's name, or "".
func (l *Link) release(current serialport.Port) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current != nil && l.port != current {
		return ""
	}
	return l.closePortLocked()
}

// closePortLocked closes the handle and returns the name it had, or "".
func (l *Link) closePortLocked() string {
	if l.port == nil {
		return ""
	}
	if err := closePort(l.port); err != nil {
		l.logger.Warn().Err(err).Str("port", l.portName).Msg("serial port close failed")
	}
	name := l.portName
	l.port = nil
	l.portName = ""
	return name
}

// closePort turns a driver panic in Close into an error.
func closePort(p serialport.Port) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Close()
}

func (l *Link) logDisconnected(name string) {
	if name == "" {
		return
	}
	l.logger.Info().Str("port", name).Msg("serial port disconnected")
	l.emit(Event{Kind: EventLog, Port: name, Cause: CauseDisconnected,
		Text: fmt.Sprintf("Port [%s] Disconnected\n", name)})
}

// emit queues ev, blocking while the queue is full. It gives up once the
// link is closed and the queue has no room.
func (l *Link) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case l.events <- ev:
		return
	default:
	}
	select {
	case l.events <- ev:
	case <-l.done:
	}
}

func (l *Link) ensureReadLoop() {
	l.loopMu.Lock()
	defer l.loopMu.Unlock()

	if l.loop != nil && l.loop.State() != LoopFailed {
		return
	}

	sup := newSupervisor(l.cfg.Restart, l.readLoop)
	sup.onCrash = func(n int, err error) {
		l.restarts.Add(1)
		l.logger.Error().Err(err).Int("crashes", n).Msg("read loop crashed, restarting")
		l.emit(Event{Kind: EventLog, Port: l.Port(), Cause: CauseRestart, Err: err,
			Text: fmt.Sprintf("### Serial Port thread killed, trying to restart: %v ###\n", err)})
	}
	sup.onFail = func(n int, err error) {
		l.restarts.Add(1)
		l.logger.Error().Err(err).Int("crashes", n).Msg("read loop restart limit reached")
		// nothing reads the handle anymore
		name := l.release(nil)
		l.emit(Event{Kind: EventLog, Port: name, Cause: CauseFailed, Err: err,
			Text: fmt.Sprintf("### Serial Port thread stopped after %d crashes: %v ###\n", n, err)})
		l.logDisconnected(name)
	}
	l.loop = sup
	sup.start(l.done)
}

// readLoop runs until the link is closed. It returns nil only then.
func (l *Link) readLoop() error {
	for {
		select {
		case <-l.done:
			return nil
		default:
		}

		port, name, conn, line, err := l.readLine()
		switch {
		case port == nil:
			l.idle()
		case err != nil:
			l.dropPort(port, name, err)
		case line == nil:
			l.idle()
		case !utf8.Valid(line):
			l.logger.Warn().Str("port", name).Int("bytes", len(line)).Msg("bad serial data")
			l.emit(Event{Kind: EventLog, Port: name, Conn: conn, Cause: CauseBadData,
				Text: fmt.Sprintf("Bad serial data for port [%s]: invalid UTF-8 (%d bytes)\n", name, len(line))})
		default:
			l.emit(Event{Kind: EventLine, Port: name, Conn: conn, Text: string(line)})
		}
	}
}

// readLine performs one bounded read under the handle's read lock.
func (l *Link) readLine() (serialport.Port, string, uint64, []byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.port == nil {
		return nil, "", 0, nil, nil
	}
	line, err := l.reader.next(l.port)
	return l.port, l.portName, l.conn, line, err
}

// dropPort closes failed if it is still the current handle. The only
// notification is the read error itself.
func (l *Link) dropPort(failed serialport.Port, name string, cause error) {
	l.release(failed)

	l.logger.Error().Err(cause).Str("port", name).Msg("serial read failed, disconnected")
	l.emit(Event{Kind: EventLog, Port: name, Cause: CauseReadError, Err: cause,
		Text: fmt.Sprintf("Could not read port [%s]: %v\n", name, cause)})
}

func (l *Link) idle() {
	select {
	case <-l.done:
	case <-time.After(l.cfg.IdlePoll):
	}
}
