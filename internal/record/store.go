// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package record

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/relabs-tech/imu_monitor/internal/window"
)

// DefaultGesture is listed when no gesture folder exists yet.
const DefaultGesture = "idle"

const fileTimeLayout = "20060102_150405"

// Store keeps recordings as <dir>/<gesture>/<YYYYmmdd_HHMMSS>.csv.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the root folder.
func (s *Store) Dir() string { return s.dir }

// Save writes rows under gesture and returns the file path. A recording
// saved within the same second replaces the earlier one.
func (s *Store) Save(gesture string, rows []Row) (string, error) {
	if err := checkName(gesture); err != nil {
		return "", err
	}
	folder := filepath.Join(s.dir, gesture)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", folder, err)
	}

	path := filepath.Join(folder, s.now().Format(fileTimeLayout)+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

// Gestures lists gesture folders, sorted. It returns [DefaultGesture] when
// there are none.
func (s *Store) Gestures() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return []string{DefaultGesture}, nil
	}
	sort.Strings(names)
	return names, nil
}

// Recordings lists the CSV files saved for gesture, oldest first.
func (s *Store) Recordings(gesture string) ([]string, error) {
	if err := checkName(gesture); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.dir, gesture))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", gesture, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// ReadRows parses one saved recording.
func (s *Store) ReadRows(gesture, file string) ([]Row, error) {
	if err := checkName(gesture); err != nil {
		return nil, err
	}
	if err := checkName(file); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, gesture, file)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}

// Load replays a saved recording into two new windows.
func (s *Store) Load(gesture, file string, opts window.Options) (acc, gyro *window.Window, err error) {
	rows, err := s.ReadRows(gesture, file)
	if err != nil {
		return nil, nil, err
	}
	acc = window.New(opts)
	gyro = window.New(opts)
	Fill(rows, acc, gyro)
	return acc, gyro, nil
}

// checkName rejects names that would escape the store folder.
func checkName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid name %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("invalid name %q: contains a path separator", name)
	}
	return nil
}
