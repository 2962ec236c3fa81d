// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/imu_monitor/internal/gps"
	"github.com/relabs-tech/imu_monitor/internal/imu"
	"github.com/relabs-tech/imu_monitor/internal/orientation"
)

const (
	clientQueueSize = 64
	writeWait       = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Stream message types.
const (
	MsgLine   = "line"
	MsgLog    = "log"
	MsgPorts  = "ports"
	MsgSample = "sample"
	MsgPose   = "pose"
	MsgFix    = "fix"
)

// StreamMessage is one JSON frame on /ws.
type StreamMessage struct {
	Type   string            `json:"type"`
	Time   time.Time         `json:"time"`
	Kind   string            `json:"kind,omitempty"` // line kind for MsgLine
	Port   string            `json:"port,omitempty"`
	Text   string            `json:"text,omitempty"`
	Cause  string            `json:"cause,omitempty"`
	Ports  []string          `json:"ports,omitempty"`
	Sample *imu.Sample       `json:"sample,omitempty"`
	Pose   *orientation.Pose `json:"pose,omitempty"`
	Fix    *gps.Fix          `json:"fix,omitempty"`
}

// streamFilter selects messages by type and, for lines, by kind. Empty
// sets pass everything.
type streamFilter struct {
	types map[string]bool
	kinds map[string]bool
}

// parseFilter reads ?types=line,log&kinds=imu,result.
func parseFilter(r *http.Request) streamFilter {
	return streamFilter{
		types: csvSet(r.URL.Query().Get("types")),
		kinds: csvSet(r.URL.Query().Get("kinds")),
	}
}

func csvSet(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			set[part] = true
		}
	}
	return set
}

func (f streamFilter) match(m StreamMessage) bool {
	if len(f.types) > 0 && !f.types[m.Type] {
		return false
	}
	if m.Type == MsgLine && len(f.kinds) > 0 && !f.kinds[m.Kind] {
		return false
	}
	return true
}

type hubClient struct {
	conn   *websocket.Conn
	send   chan StreamMessage
	filter streamFilter
}

// Hub fans stream messages out to websocket clients. Slow clients lose
// messages rather than stall the producer.
type Hub struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*hubClient]struct{}),
	}
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(m StreamMessage) {
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.filter.match(m) {
			continue
		}
		select {
		case c.send <- m:
		default:
			h.logger.Debug().Str("type", m.Type).Msg("websocket client too slow, dropping message")
		}
	}
}

// ServeWS upgrades the request and streams matching messages until the
// client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	c := &hubClient{
		conn:   conn,
		send:   make(chan StreamMessage, clientQueueSize),
		filter: parseFilter(r),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	gone := make(chan struct{})
	go h.writePump(c, gone)

	// the stream is one-way; reads only detect the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(gone)
	conn.Close()
}

func (h *Hub) writePump(c *hubClient, gone <-chan struct{}) {
	for {
		select {
		case <-gone:
			return
		case m := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(m); err != nil {
				h.logger.Debug().Err(err).Msg("websocket write error")
				c.conn.Close()
				return
			}
		}
	}
}
