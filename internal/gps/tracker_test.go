package gps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_RMC(t *testing.T) {
	tr := NewTracker()

	_, ok := tr.Fix()
	assert.False(t, ok)

	changed, err := tr.Update("$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*70\r\n")
	require.NoError(t, err)
	assert.True(t, changed)

	fix, ok := tr.Fix()
	require.True(t, ok)
	assert.Equal(t, "A", fix.Validity)
	assert.InDelta(t, 51.5637, fix.Latitude, 1e-3)
	assert.InDelta(t, -0.704, fix.Longitude, 1e-3)
	assert.InDelta(t, 173.8, fix.SpeedKnots, 1e-9)
	assert.InDelta(t, 231.8, fix.CourseDeg, 1e-9)
}

func TestTracker_IgnoresOtherSentences(t *testing.T) {
	tr := NewTracker()

	changed, err := tr.Update("not nmea")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = tr.Update("$GPRMC,garbage*00")
	assert.Error(t, err)

	_, ok := tr.Fix()
	assert.False(t, ok)
}
