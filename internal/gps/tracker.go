// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"fmt"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
)

// Tracker accumulates NMEA sentences forwarded by the serial device into
// the latest Fix. Safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	current Fix
	haveFix bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Update parses one NMEA line. It reports whether the fix changed; noisy
// or partial sentences come back as errors and leave the fix untouched.
func (t *Tracker) Update(line string) (bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return false, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return false, fmt.Errorf("nmea parse: %w", err)
	}

	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)

		t.mu.Lock()
		t.current = Fix{
			Time:       m.Time.String(),
			Date:       m.Date.String(),
			Latitude:   m.Latitude,
			Longitude:  m.Longitude,
			SpeedKnots: m.Speed,
			CourseDeg:  m.Course,
			Validity:   m.Validity,
		}
		t.haveFix = true
		t.mu.Unlock()
		return true, nil

	default:
		// GGA, GSA, etc. are not folded into the fix yet
		return false, nil
	}
}

// Fix returns the latest fix and whether one has been seen.
func (t *Tracker) Fix() (Fix, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current, t.haveFix
}
