package imu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Telemetry(t *testing.T) {
	s, ok := Decode("[IMU] [  120 ms], Acc: [ 0.1, -0.2, 1.0] G, Gyro: [ 10, -20.5, 0] DPS")
	require.True(t, ok)

	assert.Equal(t, int64(120), s.Timestamp)
	assert.Equal(t, Vector{X: 0.1, Y: -0.2, Z: 1.0}, s.Accel)
	assert.Equal(t, Vector{X: 10, Y: -20.5, Z: 0}, s.Gyro)
}

func TestDecode_TrailingNewlineAndNoPadding(t *testing.T) {
	s, ok := Decode("[IMU] [5 ms], Acc: [1,2,3] G, Gyro: [-4,-5.25,.5] DPS\r\n")
	require.True(t, ok)

	assert.Equal(t, int64(5), s.Timestamp)
	assert.Equal(t, Vector{X: 1, Y: 2, Z: 3}, s.Accel)
	assert.Equal(t, Vector{X: -4, Y: -5.25, Z: 0.5}, s.Gyro)
}

func TestDecode_NotTelemetry(t *testing.T) {
	lines := []string{
		"hello world",
		"",
		"[IMU] [ 12 ms], Acc: [ 0.1, 0.2] G, Gyro: [ 1, 2, 3] DPS",
		"[IMU] [ 12 ms], Acc: [ 1-2, 0.2, 0.3] G, Gyro: [ 1, 2, 3] DPS",
		"[Res] idle 0.98",
	}
	for _, line := range lines {
		_, ok := Decode(line)
		assert.False(t, ok, "line %q", line)
	}
}

func TestVectorSeries(t *testing.T) {
	got := Vector{X: 1, Y: 2, Z: 3}.Series()
	assert.Equal(t, map[string]float64{"x-axis": 1, "y-axis": 2, "z-axis": 3}, got)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want Kind
	}{
		{"[IMU] [ 1 ms], Acc: [0,0,0] G, Gyro: [0,0,0] DPS", KindIMU},
		{"[Res] wave 0.91", KindResult},
		{"$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*70", KindNMEA},
		{"boot ok", KindText},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.line), tt.line)
	}
	assert.Equal(t, "nmea", KindNMEA.String())
}
