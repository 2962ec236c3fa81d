// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package portscan

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/imu_monitor/internal/serialport"
)

// PortSet is the set of visible device descriptors.
type PortSet map[string]struct{}

// NewPortSet builds a set from names; duplicates collapse.
func NewPortSet(names ...string) PortSet {
	s := make(PortSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Equal compares membership only.
func (s PortSet) Equal(other PortSet) bool {
	if len(s) != len(other) {
		return false
	}
	for n := range s {
		if _, ok := other[n]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the names in lexical order.
func (s PortSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Registry enumerates serial devices.
type Registry struct {
	lister serialport.Lister
	logger zerolog.Logger
}

func NewRegistry(lister serialport.Lister, logger zerolog.Logger) *Registry {
	return &Registry{lister: lister, logger: logger}
}

// List returns the devices attached right now. An enumeration failure is
// logged and reported as an empty set.
func (r *Registry) List() PortSet {
	names, err := r.lister.List()
	if err != nil {
		r.logger.Warn().Err(err).Msg("port enumeration failed, treating as no devices")
		return PortSet{}
	}
	return NewPortSet(names...)
}

// Watch polls List every interval and calls onChange whenever the set
// differs from the previous observation. The first poll compares against
// the set seen when Watch was called. onChange runs on the watcher goroutine.
func (r *Registry) Watch(interval time.Duration, onChange func(PortSet)) *Watcher {
	w := &Watcher{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	current := r.List()

	go func() {
		defer close(w.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
			}

			next := r.List()
			if next.Equal(current) {
				continue
			}
			current = next
			if onChange != nil {
				onChange(next)
			}
		}
	}()

	return w
}

// Watcher is a running port poll loop.
type Watcher struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Stop asks the loop to exit; it does not wait.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Done is closed once the loop has exited.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Wait stops the loop and waits up to timeout for it to exit. It reports
// false when the loop is still running, e.g. stuck inside onChange.
func (w *Watcher) Wait(timeout time.Duration) bool {
	w.Stop()
	select {
	case <-w.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
