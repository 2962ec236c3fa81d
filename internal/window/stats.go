// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package window

import (
	"math"
	"sort"
)

// Stats are quartiles over the union of all series values.
type Stats struct {
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
}

// Statistics returns quartiles of every non-NaN value in the window. The
// result is cached until the next mutation. An empty window yields zeros.
func (w *Window) Statistics() Stats {
	w.mu.RLock()
	if !w.dirty {
		s := w.stats
		w.mu.RUnlock()
		return s
	}
	w.mu.RUnlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirty {
		return w.stats
	}

	var all []float64
	for _, vals := range w.series {
		for _, v := range vals {
			if !math.IsNaN(v) {
				all = append(all, v)
			}
		}
	}
	sort.Float64s(all)

	w.stats = Stats{
		P25: Percentile(all, 25),
		P50: Percentile(all, 50),
		P75: Percentile(all, 75),
	}
	w.dirty = false
	return w.stats
}

// Percentile returns the p-th percentile (0-100) of sorted values using
// linear interpolation between closest ranks. Empty input yields 0.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := lo + 1
	if hi >= n {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
