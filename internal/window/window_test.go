package window

import (
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func axes(x, y, z float64) map[string]float64 {
	return map[string]float64{"x-axis": x, "y-axis": y, "z-axis": z}
}

func assertParallel(t *testing.T, w *Window) {
	t.Helper()
	n := w.Len()
	for _, name := range w.SeriesNames() {
		assert.Len(t, w.Series(name), n, "series %q", name)
	}
}

func TestAppend_ParallelInvariant(t *testing.T) {
	w := New(Options{MaxSamples: 7, Timespan: 50})
	rng := rand.New(rand.NewSource(1))

	ts := int64(0)
	for i := 0; i < 200; i++ {
		ts += int64(rng.Intn(20))
		switch i % 3 {
		case 0:
			w.Append(ts, axes(rng.Float64(), rng.Float64(), rng.Float64()))
		case 1:
			w.AppendList(ts, []float64{1, 2})
		default:
			w.AppendSingle(ts, 3)
		}
		assertParallel(t, w)
		assert.LessOrEqual(t, w.Len(), 7)
	}
}

func TestAppend_TimespanEviction(t *testing.T) {
	w := New(Options{Timespan: 100})

	for _, ts := range []int64{0, 40, 90, 130, 260} {
		w.Append(ts, axes(1, 2, 3))
		for _, kept := range w.Timestamps() {
			assert.GreaterOrEqual(t, kept, ts-100)
		}
	}
	assert.Equal(t, []int64{260}, w.Timestamps())
	assert.Equal(t, []float64{1}, w.Series("x-axis"))
}

func TestAppend_TimespanBoundaryIsKept(t *testing.T) {
	w := New(Options{Timespan: 100})
	w.AppendSingle(0, 1)
	w.AppendSingle(100, 2)
	assert.Equal(t, []int64{0, 100}, w.Timestamps())
}

func TestAppend_MaxSamples(t *testing.T) {
	w := New(Options{MaxSamples: 3})
	for i := int64(1); i <= 5; i++ {
		w.AppendSingle(i, float64(i*10))
	}
	assert.Equal(t, []int64{3, 4, 5}, w.Timestamps())
	assert.Equal(t, []float64{30, 40, 50}, w.Series("Series 1"))
}

func TestAppend_TimeEvictionBeforeCount(t *testing.T) {
	w := New(Options{Timespan: 10, MaxSamples: 2})
	w.AppendSingle(0, 0)
	w.AppendSingle(5, 1)
	w.AppendSingle(100, 2)
	assert.Equal(t, []int64{100}, w.Timestamps())
}

func TestAppendList_SeriesNames(t *testing.T) {
	w := New(Options{})
	w.AppendList(1, []float64{1, 2, 3})
	assert.Equal(t, []string{"Series 1", "Series 2", "Series 3"}, w.SeriesNames())
	assert.Equal(t, []float64{3}, w.Series("Series 3"))
}

func TestAppend_LateSeriesBackfilled(t *testing.T) {
	w := New(Options{})
	w.Append(1, map[string]float64{"a": 1})
	w.Append(2, map[string]float64{"a": 2})
	w.Append(3, map[string]float64{"a": 3, "b": 30})
	w.Append(4, map[string]float64{"b": 40})

	a := w.Series("a")
	b := w.Series("b")
	require.Len(t, a, 4)
	require.Len(t, b, 4)
	assert.True(t, math.IsNaN(b[0]))
	assert.True(t, math.IsNaN(b[1]))
	assert.Equal(t, 30.0, b[2])
	assert.True(t, math.IsNaN(a[3]))
	assert.Equal(t, []string{"a", "b"}, w.SeriesNames())
}

func TestClear_KeepsLimits(t *testing.T) {
	w := New(Options{MaxSamples: 2})
	w.Append(1, axes(1, 1, 1))
	w.Clear()

	assert.Equal(t, 0, w.Len())
	assert.Empty(t, w.SeriesNames())
	assert.Nil(t, w.Series("x-axis"))

	for i := int64(0); i < 5; i++ {
		w.AppendSingle(i, 1)
	}
	assert.Equal(t, 2, w.Len())
}

func TestStatistics_Empty(t *testing.T) {
	w := New(Options{})
	assert.Equal(t, Stats{}, w.Statistics())
}

func TestStatistics_Median(t *testing.T) {
	w := New(Options{})
	for i, v := range []float64{1, 2, 3, 4} {
		w.AppendSingle(int64(i), v)
	}
	s := w.Statistics()
	assert.InDelta(t, 2.5, s.P50, 1e-12)
	assert.InDelta(t, 1.75, s.P25, 1e-12)
	assert.InDelta(t, 3.25, s.P75, 1e-12)
}

func TestStatistics_UnionOfSeriesIgnoresNaN(t *testing.T) {
	w := New(Options{})
	w.Append(1, map[string]float64{"a": 1})
	w.Append(2, map[string]float64{"a": 3, "b": 2})

	assert.InDelta(t, 2, w.Statistics().P50, 1e-12)
}

func TestStatistics_RecomputedAfterChange(t *testing.T) {
	w := New(Options{})
	w.AppendSingle(1, 10)
	assert.InDelta(t, 10, w.Statistics().P50, 1e-12)
	assert.InDelta(t, 10, w.Statistics().P50, 1e-12)

	w.AppendSingle(2, 20)
	assert.InDelta(t, 15, w.Statistics().P50, 1e-12)

	w.Clear()
	assert.Equal(t, Stats{}, w.Statistics())
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, 0.0, Percentile(nil, 50))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 25))
	assert.Equal(t, 1.0, Percentile([]float64{1, 2, 3}, 0))
	assert.Equal(t, 3.0, Percentile([]float64{1, 2, 3}, 100))
	assert.InDelta(t, 2.0, Percentile([]float64{1, 2, 3}, 50), 1e-12)
}

func TestSnapshot_IsCopy(t *testing.T) {
	w := New(Options{})
	w.Append(1, axes(1, 2, 3))

	snap := w.Snapshot()
	snap.Series["x-axis"][0] = 99
	snap.Timestamps[0] = 99

	assert.Equal(t, []float64{1}, w.Series("x-axis"))
	assert.Equal(t, []int64{1}, w.Timestamps())
	assert.Equal(t, []string{"x-axis", "y-axis", "z-axis"}, snap.Order)
}

func TestSnapshot_JSONWritesNaNAsNull(t *testing.T) {
	w := New(Options{})
	w.Append(1, map[string]float64{"a": 1})
	w.Append(2, map[string]float64{"b": 2})

	b, err := json.Marshal(w.Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamps":[1,2],"series":{"a":[1,null],"b":[null,2]},"order":["a","b"]}`, string(b))

	var back Snapshot
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 1.0, back.Series["a"][0])
	assert.True(t, math.IsNaN(back.Series["a"][1]))
	assert.True(t, math.IsNaN(back.Series["b"][0]))
}

func TestWindow_ConcurrentUse(t *testing.T) {
	w := New(Options{MaxSamples: 50})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := int64(0); i < 1000; i++ {
			w.Append(i, axes(1, 2, 3))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = w.Statistics()
			_ = w.Snapshot()
		}
	}()
	wg.Wait()

	assert.Equal(t, 50, w.Len())
}
