// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialport

import (
	"fmt"

	gobug "go.bug.st/serial"
)

// allow tests to override external dependencies
var (
	bugstOpen  = gobug.Open
	bugstPorts = gobug.GetPortsList
)

// BugST is the go.bug.st/serial backend. Its Read already returns (0, nil)
// on timeout.
type BugST struct{}

func (BugST) Open(name string, mode Mode) (Port, error) {
	m := &gobug.Mode{
		BaudRate: mode.BaudRate,
		DataBits: 8,
		Parity:   gobug.NoParity,
		StopBits: gobug.OneStopBit,
	}
	if m.BaudRate == 0 {
		m.BaudRate = 9600
	}

	p, err := bugstOpen(name, m)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	if mode.ReadTimeout > 0 {
		if err := p.SetReadTimeout(mode.ReadTimeout); err != nil {
			p.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
		}
	}
	return p, nil
}

func (BugST) List() ([]string, error) {
	ports, err := bugstPorts()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	return ports, nil
}
