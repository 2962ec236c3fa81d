// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialport

import (
	"errors"
	"fmt"
	"io"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
)

// Jacobsa is the github.com/jacobsa/go-serial backend. It cannot enumerate
// devices, so List delegates to go.bug.st.
type Jacobsa struct{}

func (Jacobsa) Open(name string, mode Mode) (Port, error) {
	opts := serial.OpenOptions{
		PortName:        name,
		BaudRate:        uint(mode.BaudRate),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}
	if opts.BaudRate == 0 {
		opts.BaudRate = 9600
	}
	if mode.ReadTimeout > 0 {
		// VMIN=0 + VTIME gives a bounded read; VTIME is in tenths of a second
		// and the library wants a multiple of 100ms.
		opts.MinimumReadSize = 0
		opts.InterCharacterTimeout = uint(roundUpTenth(mode.ReadTimeout) / time.Millisecond)
	}

	p, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &jacobsaPort{ReadWriteCloser: p}, nil
}

func (Jacobsa) List() ([]string, error) {
	return BugST{}.List()
}

func roundUpTenth(d time.Duration) time.Duration {
	const tenth = 100 * time.Millisecond
	if d%tenth == 0 {
		return d
	}
	return (d/tenth + 1) * tenth
}

// jacobsaPort maps the EOF that a VTIME timeout produces on the underlying
// file to the (0, nil) timeout contract of Port.
type jacobsaPort struct {
	io.ReadWriteCloser
}

func (p *jacobsaPort) Read(b []byte) (int, error) {
	n, err := p.ReadWriteCloser.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}
