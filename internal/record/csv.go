// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package record exports accelerometer and gyroscope windows as flat
// sample rows and stores them on disk or in PostgreSQL.
package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/relabs-tech/imu_monitor/internal/imu"
	"github.com/relabs-tech/imu_monitor/internal/window"
)

// Header is the fixed column layout of an exported recording.
var Header = []string{"Time", "aX", "aY", "aZ", "gX", "gY", "gZ"}

// ErrMisaligned means the two windows differ in length or timestamps.
var ErrMisaligned = errors.New("accelerometer and gyroscope windows are not aligned")

// Row is one flat sample row.
type Row struct {
	Time int64
	Acc  imu.Vector
	Gyro imu.Vector
}

// Rows pairs the windows by index. Both must hold the same timestamps.
func Rows(acc, gyro *window.Window) ([]Row, error) {
	a := acc.Snapshot()
	g := gyro.Snapshot()

	if len(a.Timestamps) != len(g.Timestamps) {
		return nil, fmt.Errorf("%w: %d vs %d samples", ErrMisaligned, len(a.Timestamps), len(g.Timestamps))
	}

	rows := make([]Row, len(a.Timestamps))
	for i, ts := range a.Timestamps {
		if g.Timestamps[i] != ts {
			return nil, fmt.Errorf("%w: index %d has times %d and %d", ErrMisaligned, i, ts, g.Timestamps[i])
		}
		rows[i] = Row{
			Time: ts,
			Acc:  vectorAt(a, i),
			Gyro: vectorAt(g, i),
		}
	}
	return rows, nil
}

func vectorAt(s window.Snapshot, i int) imu.Vector {
	at := func(name string) float64 {
		vals := s.Series[name]
		if i >= len(vals) {
			return math.NaN()
		}
		return vals[i]
	}
	return imu.Vector{X: at(imu.AxisX), Y: at(imu.AxisY), Z: at(imu.AxisZ)}
}

// Fill appends rows to the two windows.
func Fill(rows []Row, acc, gyro *window.Window) {
	for _, r := range rows {
		acc.Append(r.Time, r.Acc.Series())
		gyro.Append(r.Time, r.Gyro.Series())
	}
}

// WriteCSV writes the header followed by one line per row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(Header))
	for _, r := range rows {
		record[0] = strconv.FormatInt(r.Time, 10)
		record[1] = formatFloat(r.Acc.X)
		record[2] = formatFloat(r.Acc.Y)
		record[3] = formatFloat(r.Acc.Z)
		record[4] = formatFloat(r.Gyro.X)
		record[5] = formatFloat(r.Gyro.Y)
		record[6] = formatFloat(r.Gyro.Z)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", r.Time, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadCSV parses a recording. Columns are located by header name, so
// extra columns and reordering are tolerated.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(head))
	for i, name := range head {
		col[name] = i
	}
	idx := make([]int, len(Header))
	for i, name := range Header {
		c, ok := col[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		idx[i] = c
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var vals [7]float64
		for i, c := range idx {
			if c >= len(rec) {
				return nil, fmt.Errorf("line %d: missing %s", line, Header[i])
			}
			v, err := strconv.ParseFloat(rec[c], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, Header[i], err)
			}
			vals[i] = v
		}
		rows = append(rows, Row{
			Time: int64(vals[0]),
			Acc:  imu.Vector{X: vals[1], Y: vals[2], Z: vals[3]},
			Gyro: imu.Vector{X: vals[4], Y: vals[5], Z: vals[6]},
		})
	}
}
