// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package link

import (
	"context"
	"time"
)

// EventKind tells which collaborator notification an Event carries.
type EventKind int

const (
	EventLine EventKind = iota
	EventLog
	EventPorts
)

func (k EventKind) String() string {
	switch k {
	case EventLine:
		return "line"
	case EventLog:
		return "log"
	case EventPorts:
		return "ports"
	default:
		return "unknown"
	}
}

// Cause classifies log events so consumers can count or filter them
// without parsing the message.
type Cause string

const (
	CauseConnected    Cause = "connected"
	CauseDisconnected Cause = "disconnected"
	CauseReadError    Cause = "read_error"
	CauseBadData      Cause = "bad_data"
	CauseRestart      Cause = "restart"
	CauseFailed       Cause = "failed"
)

// Event is one notification from the link's background tasks.
//
// EventLine: Text is the raw line, terminator included.
// EventLog: Text is a human readable message naming the port, Cause says why.
// EventPorts: Ports is the new port set, sorted.
type Event struct {
	Kind EventKind
	Time time.Time
	Port string
	// Conn is the connection sequence number a line was read under. See
	// Link.Conn.
	Conn  uint64
	Text  string
	Cause Cause
	Err   error
	Ports []string
}

// Handlers are the callback form of the event stream. Nil handlers drop
// their events.
type Handlers struct {
	OnLine         func(port, text string)
	OnLog          func(message string)
	OnPortsChanged func(ports []string)
}

// Dispatch drains events and invokes the matching handler on the calling
// goroutine, in queue order, until ctx is done or events is closed.
func Dispatch(ctx context.Context, events <-chan Event, h Handlers) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.handle(ev)
		}
	}
}

func (h Handlers) handle(ev Event) {
	switch ev.Kind {
	case EventLine:
		if h.OnLine != nil {
			h.OnLine(ev.Port, ev.Text)
		}
	case EventLog:
		if h.OnLog != nil {
			h.OnLog(ev.Text)
		}
	case EventPorts:
		if h.OnPortsChanged != nil {
			h.OnPortsChanged(ev.Ports)
		}
	}
}
