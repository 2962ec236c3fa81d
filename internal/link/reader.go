// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package link

import (
	"bytes"
	"io"
)

const (
	readChunkSize = 512
	// DefaultMaxLineLength bounds a line that never sees its terminator.
	DefaultMaxLineLength = 4096
)

// lineReader splits a timeout-driven byte stream into newline terminated
// lines. Bytes of an unfinished line survive timeouts and are completed by
// later reads.
type lineReader struct {
	buf   []byte
	chunk []byte
	max   int
}

func newLineReader(max int) *lineReader {
	if max <= 0 {
		max = DefaultMaxLineLength
	}
	return &lineReader{
		chunk: make([]byte, readChunkSize),
		max:   max,
	}
}

func (r *lineReader) reset() {
	r.buf = r.buf[:0]
}

// next returns the next complete line including its terminator. A nil
// line with nil error means the read timed out without completing one.
// An over-long unterminated run is returned as-is once it reaches max.
func (r *lineReader) next(src io.Reader) ([]byte, error) {
	for {
		if line := r.take(); line != nil {
			return line, nil
		}

		n, err := src.Read(r.chunk)
		if n > 0 {
			r.buf = append(r.buf, r.chunk[:n]...)
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
	}
}

func (r *lineReader) take() []byte {
	end := bytes.IndexByte(r.buf, '\n') + 1
	if end == 0 {
		if len(r.buf) < r.max {
			return nil
		}
		end = r.max
	}
	line := make([]byte, end)
	copy(line, r.buf[:end])
	r.buf = append(r.buf[:0], r.buf[end:]...)
	return line
}
