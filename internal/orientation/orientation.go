// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"sync"

	"github.com/relabs-tech/imu_monitor/internal/imu"
)

// Pose is the canonical representation of orientation for your app.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is set to 0 (no magnetometer on the serial IMU).
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}

// DefaultAlpha weights the gyro-integrated angle against the accelerometer tilt.
const DefaultAlpha = 0.98

// Tracker fuses decoded samples with a complementary filter. Roll and
// pitch blend gyro integration with accelerometer tilt; yaw is gyro-only
// and drifts.
type Tracker struct {
	alpha float64

	mu     sync.RWMutex
	pose   Pose
	lastTS int64
	primed bool
}

// NewTracker returns a tracker; alpha outside (0,1) falls back to DefaultAlpha.
func NewTracker(alpha float64) *Tracker {
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}
	return &Tracker{alpha: alpha}
}

// Update folds one sample into the pose and returns the new estimate.
func (t *Tracker) Update(s imu.Sample) Pose {
	t.mu.Lock()
	defer t.mu.Unlock()

	accel := ComputePoseFromAccel(s.Accel.X, s.Accel.Y, s.Accel.Z)

	// first sample, or device clock went backwards (MCU reset)
	if !t.primed || s.Timestamp <= t.lastTS {
		t.pose = accel
		t.lastTS = s.Timestamp
		t.primed = true
		return t.pose
	}

	dt := float64(s.Timestamp-t.lastTS) / 1000.0
	t.lastTS = s.Timestamp

	t.pose.Roll = t.alpha*(t.pose.Roll+s.Gyro.X*dt) + (1-t.alpha)*accel.Roll
	t.pose.Pitch = t.alpha*(t.pose.Pitch+s.Gyro.Y*dt) + (1-t.alpha)*accel.Pitch
	t.pose.Yaw = math.Mod(t.pose.Yaw+s.Gyro.Z*dt, 360)

	return t.pose
}

// Pose returns the current estimate and whether any sample was seen.
func (t *Tracker) Pose() (Pose, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pose, t.primed
}

// Reset forgets the estimate; the next sample re-primes from the accelerometer.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.pose = Pose{}
	t.lastTS = 0
	t.primed = false
	t.mu.Unlock()
}
