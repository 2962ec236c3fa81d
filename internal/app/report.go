// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"

	"github.com/relabs-tech/imu_monitor/internal/record"
	"github.com/relabs-tech/imu_monitor/internal/window"
)

// WriteRecordingReport prints sample counts and percentiles for every
// recording of the given gestures. An empty list means all gestures.
func WriteRecordingReport(w io.Writer, store *record.Store, gestures []string) error {
	if len(gestures) == 0 {
		all, err := store.Gestures()
		if err != nil {
			return err
		}
		gestures = all
	}

	for _, g := range gestures {
		files, err := store.Recordings(g)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %d recording(s)\n", g, len(files))

		for _, f := range files {
			acc, gyro, err := store.Load(g, f, window.Options{})
			if err != nil {
				fmt.Fprintf(w, "  %s: %v\n", f, err)
				continue
			}
			as, gs := acc.Statistics(), gyro.Statistics()
			fmt.Fprintf(w, "  %s: %d samples  acc p25/p50/p75=%.3f/%.3f/%.3f  gyro p25/p50/p75=%.2f/%.2f/%.2f\n",
				f, acc.Len(), as.P25, as.P50, as.P75, gs.P25, gs.P50, gs.P75)
		}
	}
	return nil
}
