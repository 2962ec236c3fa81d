// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package window holds bounded, timestamp-ordered buffers of named series.
//
// A Window keeps one shared timestamp sequence and, per series, a parallel
// value sequence of the same length. After every append, samples older than
// newest-Timespan are dropped from the front, then the front is trimmed
// until at most MaxSamples remain.
//
// Series that appear after samples already exist are backfilled with NaN,
// and a known series missing from an append receives NaN, so every series
// always has exactly Len() values. Statistics skip NaN.
package window

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
)

// Options configures eviction. Zero values disable the bound.
type Options struct {
	Timespan   int64 // milliseconds
	MaxSamples int
}

// Window is safe for concurrent use.
type Window struct {
	opts Options

	mu         sync.RWMutex
	timestamps []int64
	series     map[string][]float64
	order      []string // series names by first appearance

	dirty bool
	stats Stats
}

func New(opts Options) *Window {
	return &Window{
		opts:   opts,
		series: make(map[string][]float64),
	}
}

// Options returns the configured limits.
func (w *Window) Options() Options { return w.opts }

// Append adds one timestamp and a value for each named series.
func (w *Window) Append(ts int64, values map[string]float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// new names first, in sorted order so first-seen order is deterministic
	for _, name := range sortedKeys(values) {
		w.ensureSeriesLocked(name)
	}
	w.appendLocked(ts, func(name string) (float64, bool) {
		v, ok := values[name]
		return v, ok
	})
}

// AppendList assigns values to "Series 1", "Series 2", ... in order.
func (w *Window) AppendList(ts int64, values []float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	byName := make(map[string]float64, len(values))
	for i, v := range values {
		name := ListSeriesName(i)
		w.ensureSeriesLocked(name)
		byName[name] = v
	}
	w.appendLocked(ts, func(name string) (float64, bool) {
		v, ok := byName[name]
		return v, ok
	})
}

// AppendSingle appends a scalar to the implicit "Series 1".
func (w *Window) AppendSingle(ts int64, value float64) {
	w.AppendList(ts, []float64{value})
}

// ListSeriesName is the synthetic name for the i-th (0-based) list value.
func ListSeriesName(i int) string {
	return fmt.Sprintf("Series %d", i+1)
}

func (w *Window) ensureSeriesLocked(name string) {
	if _, ok := w.series[name]; ok {
		return
	}
	backfill := make([]float64, len(w.timestamps))
	for i := range backfill {
		backfill[i] = math.NaN()
	}
	w.series[name] = backfill
	w.order = append(w.order, name)
}

func (w *Window) appendLocked(ts int64, value func(string) (float64, bool)) {
	w.timestamps = append(w.timestamps, ts)
	for _, name := range w.order {
		v, ok := value(name)
		if !ok {
			v = math.NaN()
		}
		w.series[name] = append(w.series[name], v)
	}

	w.evictOldLocked(ts)
	w.limitSizeLocked()
	w.dirty = true
}

// evictOldLocked drops samples older than newest-Timespan.
func (w *Window) evictOldLocked(newest int64) {
	if w.opts.Timespan <= 0 {
		return
	}
	cutoff := newest - w.opts.Timespan
	n := 0
	for n < len(w.timestamps) && w.timestamps[n] < cutoff {
		n++
	}
	w.dropFrontLocked(n)
}

func (w *Window) limitSizeLocked() {
	if w.opts.MaxSamples <= 0 {
		return
	}
	if excess := len(w.timestamps) - w.opts.MaxSamples; excess > 0 {
		w.dropFrontLocked(excess)
	}
}

// dropFrontLocked removes n samples from every sequence together. The
// backing arrays are compacted once they are mostly garbage.
func (w *Window) dropFrontLocked(n int) {
	if n <= 0 {
		return
	}
	w.timestamps = compact(w.timestamps[n:])
	for name, vals := range w.series {
		w.series[name] = compact(vals[n:])
	}
}

func compact[T any](s []T) []T {
	if cap(s) > 64 && len(s) < cap(s)/4 {
		out := make([]T, len(s), len(s)*2)
		copy(out, s)
		return out
	}
	return s
}

// Clear empties all sequences and forgets series names. Limits are kept.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.timestamps = nil
	w.series = make(map[string][]float64)
	w.order = nil
	w.dirty = true
}

// Len is the number of samples currently held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.timestamps)
}

// Timestamps returns a copy of the shared timestamp sequence.
func (w *Window) Timestamps() []int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]int64(nil), w.timestamps...)
}

// Series returns a copy of one series, or nil if the name is unknown.
func (w *Window) Series(name string) []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	vals, ok := w.series[name]
	if !ok {
		return nil
	}
	return append([]float64(nil), vals...)
}

// SeriesNames returns the known series in first-seen order.
func (w *Window) SeriesNames() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.order...)
}

// Values is one series. Its JSON form writes NaN and infinities as null,
// and reads null back as NaN.
type Values []float64

func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	out := make([]*float64, len(v))
	for i := range v {
		if !math.IsNaN(v[i]) && !math.IsInf(v[i], 0) {
			out[i] = &v[i]
		}
	}
	return json.Marshal(out)
}

func (v *Values) UnmarshalJSON(b []byte) error {
	var in []*float64
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if in == nil {
		*v = nil
		return nil
	}
	out := make(Values, len(in))
	for i, p := range in {
		if p == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *p
	}
	*v = out
	return nil
}

// Snapshot is a consistent copy of a window's contents.
type Snapshot struct {
	Timestamps []int64           `json:"timestamps"`
	Series     map[string]Values `json:"series"`
	Order      []string          `json:"order"`
}

// Snapshot copies every sequence under one lock.
func (w *Window) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := Snapshot{
		Timestamps: append([]int64(nil), w.timestamps...),
		Series:     make(map[string]Values, len(w.series)),
		Order:      append([]string(nil), w.order...),
	}
	for name, vals := range w.series {
		s.Series[name] = append(Values(nil), vals...)
	}
	return s
}
