// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"regexp"
	"strconv"
	"strings"
)

// telemetryPattern matches lines such as
//
//	[IMU] [  120 ms], Acc: [ 0.1, -0.2, 1.0] G, Gyro: [ 10, -20.5, 0] DPS
var telemetryPattern = regexp.MustCompile(
	`\[IMU\] \[\s*(\d+) ms\], Acc: \[\s*([-.\d]+),\s*([-.\d]+),\s*([-.\d]+)\] G, Gyro: \[\s*([-.\d]+),\s*([-.\d]+),\s*([-.\d]+)\] DPS`,
)

// Decode parses one raw protocol line. It returns false when the line is
// not a telemetry line; such lines are plain text for the caller.
func Decode(line string) (Sample, bool) {
	m := telemetryPattern.FindStringSubmatch(line)
	if m == nil {
		return Sample{}, false
	}

	ts, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Sample{}, false
	}

	var vals [6]float64
	for i := range vals {
		// [-.\d]+ also admits things like "1-2" or "..", which are not numbers
		v, err := strconv.ParseFloat(m[i+2], 64)
		if err != nil {
			return Sample{}, false
		}
		vals[i] = v
	}

	return Sample{
		Timestamp: ts,
		Accel:     Vector{X: vals[0], Y: vals[1], Z: vals[2]},
		Gyro:      Vector{X: vals[3], Y: vals[4], Z: vals[5]},
	}, true
}

// Kind classifies a raw line for routing.
type Kind int

const (
	KindText   Kind = iota // anything else
	KindIMU                // "[IMU]" telemetry
	KindResult             // "[Res]" on-device model output
	KindNMEA               // "$..." sentence from an attached GPS
)

func (k Kind) String() string {
	switch k {
	case KindIMU:
		return "imu"
	case KindResult:
		return "result"
	case KindNMEA:
		return "nmea"
	default:
		return "text"
	}
}

// Classify looks only at the line prefix; it does not validate the body.
func Classify(line string) Kind {
	switch {
	case strings.HasPrefix(line, "[IMU]"):
		return KindIMU
	case strings.HasPrefix(line, "[Res]"):
		return KindResult
	case strings.HasPrefix(line, "$"):
		return KindNMEA
	default:
		return KindText
	}
}
