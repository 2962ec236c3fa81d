// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/imu_monitor/internal/config"
	"github.com/relabs-tech/imu_monitor/internal/gps"
	"github.com/relabs-tech/imu_monitor/internal/imu"
	"github.com/relabs-tech/imu_monitor/internal/link"
	"github.com/relabs-tech/imu_monitor/internal/metrics"
	"github.com/relabs-tech/imu_monitor/internal/orientation"
	"github.com/relabs-tech/imu_monitor/internal/portscan"
	"github.com/relabs-tech/imu_monitor/internal/record"
	"github.com/relabs-tech/imu_monitor/internal/serialport"
	"github.com/relabs-tech/imu_monitor/internal/telemetry"
	"github.com/relabs-tech/imu_monitor/internal/window"
)

// Window groups.
const (
	GroupAcc  = "acc"
	GroupGyro = "gyro"
)

const logTailSize = 200

// RowSink receives saved recordings besides the CSV store.
type RowSink interface {
	Name() string
	WriteRows(ctx context.Context, session, gesture string, rows []record.Row) error
}

// Deps are the Monitor's replaceable collaborators. Publisher and Sink
// may be nil.
type Deps struct {
	Backend   serialport.Backend
	Publisher telemetry.Publisher
	Sink      RowSink
}

// Monitor consumes link events and routes every line to the decoder,
// the sample windows, the pose and GPS trackers, MQTT and the websocket
// hub.
type Monitor struct {
	cfg     *config.Config
	logger  zerolog.Logger
	link    *link.Link
	metrics *metrics.Metrics
	hub     *Hub
	pub     telemetry.Publisher
	store   *record.Store
	sink    RowSink

	pose *orientation.Tracker
	gps  *gps.Tracker

	// dataMu keeps the two windows aligned: one sample lands in both
	// under the lock, and exports read both under it.
	dataMu sync.Mutex
	acc    *window.Window
	gyro   *window.Window

	closeOnce sync.Once

	mu         sync.RWMutex
	session    string
	ports      []string
	lastResult string
	logTail    []string
}

func NewMonitor(cfg *config.Config, deps Deps, logger zerolog.Logger) *Monitor {
	pub := deps.Publisher
	if pub == nil {
		pub = telemetry.Nop{}
	}

	registry := portscan.NewRegistry(deps.Backend, logger)
	l := link.New(deps.Backend, registry, LinkConfig(cfg), logger)

	opts := window.Options{MaxSamples: cfg.WindowMaxSamples, Timespan: cfg.WindowTimespanMS}
	m := &Monitor{
		cfg:     cfg,
		logger:  logger.With().Str("component", "monitor").Logger(),
		link:    l,
		metrics: metrics.New(),
		hub:     NewHub(logger),
		pub:     pub,
		store:   record.NewStore(cfg.SaveDataDir),
		sink:    deps.Sink,
		pose:    orientation.NewTracker(orientation.DefaultAlpha),
		gps:     gps.NewTracker(),
		acc:     window.New(opts),
		gyro:    window.New(opts),
		session: uuid.NewString(),
		ports:   registry.List().Sorted(),
	}
	m.metrics.RegisterRestarts(l.Restarts)
	m.metrics.PortsVisible(len(m.ports))
	return m
}

// LinkConfig maps configuration keys onto link timings.
func LinkConfig(cfg *config.Config) link.Config {
	return link.Config{
		ReadTimeout:  cfg.SerialReadTimeout,
		IdlePoll:     cfg.SerialIdlePoll,
		ScanInterval: cfg.PortScanInterval,
		JoinTimeout:  cfg.JoinTimeout,
		EventBuffer:  cfg.EventQueueSize,
		Restart: link.RestartPolicy{
			MaxRestarts: cfg.ReadLoopMaxRestarts,
			Backoff:     cfg.ReadLoopBackoff,
		},
	}
}

func (m *Monitor) Link() *link.Link { return m.link }
func (m *Monitor) Metrics() *metrics.Metrics { return m.metrics }
func (m *Monitor) Hub() *Hub { return m.hub }
func (m *Monitor) Store() *record.Store { return m.store }

// Run handles link events until ctx is done or the link is closed.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.link.Done():
			return
		case ev := <-m.link.Events():
			m.handle(ev)
		}
	}
}

func (m *Monitor) handle(ev link.Event) {
	switch ev.Kind {
	case link.EventLine:
		m.handleLine(ev)
	case link.EventLog:
		m.handleLog(ev)
	case link.EventPorts:
		m.mu.Lock()
		m.ports = ev.Ports
		m.mu.Unlock()
		m.metrics.PortsVisible(len(ev.Ports))
		m.logger.Info().Strs("ports", ev.Ports).Msg("serial ports changed")
		m.hub.Broadcast(StreamMessage{Type: MsgPorts, Time: ev.Time, Ports: ev.Ports})
	}
}

func (m *Monitor) handleLine(ev link.Event) {
	if ev.Conn != m.link.Conn() {
		// queued before the latest connect
		m.metrics.Line("stale")
		return
	}

	kind := imu.Classify(ev.Text)
	m.metrics.Line(kind.String())
	m.hub.Broadcast(StreamMessage{Type: MsgLine, Time: ev.Time, Kind: kind.String(), Port: ev.Port, Text: ev.Text})

	switch kind {
	case imu.KindIMU:
		sample, ok := imu.Decode(ev.Text)
		if !ok {
			m.metrics.DecodeFailure()
			m.logger.Debug().Str("line", strings.TrimSpace(ev.Text)).Msg("unrecognized IMU line")
			return
		}
		m.Ingest(ev.Port, sample)

	case imu.KindResult:
		m.mu.Lock()
		m.lastResult = strings.TrimSpace(ev.Text)
		m.mu.Unlock()

	case imu.KindNMEA:
		changed, err := m.gps.Update(ev.Text)
		if err != nil {
			m.logger.Debug().Err(err).Msg("GPS sentence skipped")
			return
		}
		if changed {
			fix, _ := m.gps.Fix()
			m.hub.Broadcast(StreamMessage{Type: MsgFix, Time: ev.Time, Fix: &fix})
			m.publish(m.cfg.TopicGPS, telemetry.FixMessage{Session: m.Session(), Fix: fix})
		}
	}
}

// Ingest appends one decoded sample to both windows and updates the pose.
func (m *Monitor) Ingest(port string, s imu.Sample) {
	m.dataMu.Lock()
	m.acc.Append(s.Timestamp, s.Accel.Series())
	m.gyro.Append(s.Timestamp, s.Gyro.Series())
	n := m.acc.Len()
	m.dataMu.Unlock()

	m.metrics.WindowSize(GroupAcc, n)
	m.metrics.WindowSize(GroupGyro, n)

	pose := m.pose.Update(s)
	session := m.Session()

	m.hub.Broadcast(StreamMessage{Type: MsgSample, Port: port, Sample: &s})
	m.hub.Broadcast(StreamMessage{Type: MsgPose, Pose: &pose})
	m.publish(m.cfg.TopicIMU, telemetry.SampleMessage{Session: session, Port: port, Sample: s})
	m.publish(m.cfg.TopicPose, telemetry.PoseMessage{Session: session, TimeMS: s.Timestamp, Pose: pose})
}

func (m *Monitor) publish(topic string, payload any) {
	if err := m.pub.Publish(topic, payload); err != nil {
		m.logger.Warn().Err(err).Str("topic", topic).Msg("publish failed")
		return
	}
	m.metrics.Published(topic)
}

func (m *Monitor) handleLog(ev link.Event) {
	m.metrics.LinkEvent(string(ev.Cause))
	m.metrics.Connected(m.link.Connected())

	msg := strings.TrimRight(ev.Text, "\n")
	entry := m.logger.Info()
	switch ev.Cause {
	case link.CauseReadError, link.CauseBadData, link.CauseRestart, link.CauseFailed:
		entry = m.logger.Warn().Err(ev.Err)
	}
	entry.Str("port", ev.Port).Str("cause", string(ev.Cause)).Msg(msg)

	m.mu.Lock()
	m.logTail = append(m.logTail, msg)
	if len(m.logTail) > logTailSize {
		m.logTail = append(m.logTail[:0], m.logTail[len(m.logTail)-logTailSize:]...)
	}
	m.mu.Unlock()

	m.hub.Broadcast(StreamMessage{Type: MsgLog, Time: ev.Time, Port: ev.Port, Cause: string(ev.Cause), Text: msg})
}

// Connect starts a new acquisition session on port. Windows and the pose
// are reset even when the connect fails.
func (m *Monitor) Connect(port string, baudRate int) error {
	if baudRate <= 0 {
		baudRate = m.cfg.SerialBaudRate
	}

	m.dataMu.Lock()
	m.acc.Clear()
	m.gyro.Clear()
	m.dataMu.Unlock()
	m.pose.Reset()

	m.mu.Lock()
	m.session = uuid.NewString()
	m.lastResult = ""
	m.mu.Unlock()

	err := m.link.Connect(port, baudRate)
	m.metrics.Connected(m.link.Connected())
	if err != nil {
		return err
	}
	m.logger.Info().Str("port", port).Int("baud", baudRate).Str("session", m.Session()).Msg("acquisition started")
	return nil
}

func (m *Monitor) Disconnect() {
	m.link.Disconnect()
	m.metrics.Connected(false)
}

func (m *Monitor) Session() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Window returns the window for group.
func (m *Monitor) Window(group string) (*window.Window, bool) {
	switch group {
	case GroupAcc:
		return m.acc, true
	case GroupGyro:
		return m.gyro, true
	default:
		return nil, false
	}
}

func (m *Monitor) Pose() (orientation.Pose, bool) { return m.pose.Pose() }
func (m *Monitor) Fix() (gps.Fix, bool) { return m.gps.Fix() }

// LogTail returns the most recent link log messages, oldest first.
func (m *Monitor) LogTail() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.logTail...)
}

// Status summarizes the link and the current session.
type Status struct {
	Connected  bool     `json:"connected"`
	Port       string   `json:"port"`
	Session    string   `json:"session"`
	ReadLoop   string   `json:"read_loop"`
	Restarts   int64    `json:"restarts"`
	Ports      []string `json:"ports"`
	Samples    int      `json:"samples"`
	LastResult string   `json:"last_result,omitempty"`
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		Connected:  m.link.Connected(),
		Port:       m.link.Port(),
		Session:    m.session,
		ReadLoop:   m.link.LoopState().String(),
		Restarts:   m.link.Restarts(),
		Ports:      append([]string{}, m.ports...),
		Samples:    m.acc.Len(),
		LastResult: m.lastResult,
	}
}

// SaveResult describes a stored recording.
type SaveResult struct {
	Gesture string   `json:"gesture"`
	Path    string   `json:"path"`
	Rows    int      `json:"rows"`
	Session string   `json:"session"`
	Sinks   []string `json:"sinks"`
}

// ErrNoSamples is returned by Save when the windows are empty.
var ErrNoSamples = errors.New("no samples to save")

// Save exports the current windows under gesture to the CSV store and,
// when configured, the row sink.
func (m *Monitor) Save(ctx context.Context, gesture string) (SaveResult, error) {
	start := time.Now()

	m.dataMu.Lock()
	rows, err := record.Rows(m.acc, m.gyro)
	m.dataMu.Unlock()
	if err != nil {
		return SaveResult{}, err
	}
	if len(rows) == 0 {
		return SaveResult{}, ErrNoSamples
	}

	path, err := m.store.Save(gesture, rows)
	if err != nil {
		return SaveResult{}, err
	}
	res := SaveResult{Gesture: gesture, Path: path, Rows: len(rows), Session: m.Session(), Sinks: []string{"csv"}}

	if m.sink != nil {
		if err := m.sink.WriteRows(ctx, res.Session, gesture, rows); err != nil {
			return res, fmt.Errorf("%s sink: %w", m.sink.Name(), err)
		}
		res.Sinks = append(res.Sinks, m.sink.Name())
	}

	m.metrics.SaveDuration(time.Since(start).Seconds())
	m.logger.Info().Str("gesture", gesture).Str("path", path).Int("rows", len(rows)).Msg("recording saved")
	return res, nil
}

// Close tears the link down and releases the publisher.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		m.link.Close()
		m.pub.Close()
	})
}
