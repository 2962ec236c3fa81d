// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// Axis names used as series keys in sample windows.
const (
	AxisX = "x-axis"
	AxisY = "y-axis"
	AxisZ = "z-axis"
)

// Axes lists the series keys in display order.
var Axes = []string{AxisX, AxisY, AxisZ}

// Vector is one three-axis reading.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Series returns the vector keyed by axis name.
func (v Vector) Series() map[string]float64 {
	return map[string]float64{
		AxisX: v.X,
		AxisY: v.Y,
		AxisZ: v.Z,
	}
}

// Sample represents a single decoded IMU telemetry line.
type Sample struct {
	Timestamp int64 `json:"time_ms"` // device clock, milliseconds

	Accel Vector `json:"acc"`  // G
	Gyro  Vector `json:"gyro"` // DPS
}
