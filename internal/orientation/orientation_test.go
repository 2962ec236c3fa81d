package orientation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/imu_monitor/internal/imu"
)

func TestComputePoseFromAccel_Level(t *testing.T) {
	p := ComputePoseFromAccel(0, 0, 1)
	assert.InDelta(t, 0, p.Roll, 1e-9)
	assert.InDelta(t, 0, p.Pitch, 1e-9)
}

func TestComputePoseFromAccel_Tilted(t *testing.T) {
	p := ComputePoseFromAccel(0, 1, 1)
	assert.InDelta(t, 45, p.Roll, 1e-9)

	p = ComputePoseFromAccel(-1, 0, 0)
	assert.InDelta(t, 90, p.Pitch, 1e-9)
}

func TestTracker_PrimesFromAccel(t *testing.T) {
	tr := NewTracker(0.98)
	_, ok := tr.Pose()
	assert.False(t, ok)

	p := tr.Update(imu.Sample{Timestamp: 100, Accel: imu.Vector{Y: 1, Z: 1}})
	assert.InDelta(t, 45, p.Roll, 1e-9)

	_, ok = tr.Pose()
	assert.True(t, ok)
}

func TestTracker_IntegratesGyro(t *testing.T) {
	tr := NewTracker(0.5)
	tr.Update(imu.Sample{Timestamp: 0, Accel: imu.Vector{Z: 1}})

	// level accel, 90 DPS around x for one second
	p := tr.Update(imu.Sample{Timestamp: 1000, Accel: imu.Vector{Z: 1}, Gyro: imu.Vector{X: 90, Z: 10}})
	assert.InDelta(t, 45, p.Roll, 1e-9)
	assert.InDelta(t, 10, p.Yaw, 1e-9)
}

func TestTracker_ClockResetReprimes(t *testing.T) {
	tr := NewTracker(0)
	tr.Update(imu.Sample{Timestamp: 500, Accel: imu.Vector{Z: 1}})
	tr.Update(imu.Sample{Timestamp: 600, Accel: imu.Vector{Z: 1}, Gyro: imu.Vector{Z: 100}})

	p := tr.Update(imu.Sample{Timestamp: 10, Accel: imu.Vector{Y: 1, Z: 1}})
	assert.InDelta(t, 45, p.Roll, 1e-9)
	assert.InDelta(t, 0, p.Yaw, 1e-9)

	tr.Reset()
	_, ok := tr.Pose()
	assert.False(t, ok)
}
