// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package link

import (
	"fmt"
	"sync/atomic"
	"time"
)

// LoopState is the supervised read loop's lifecycle state.
type LoopState int32

const (
	// LoopStopped: not started yet, or exited after the link closed.
	LoopStopped LoopState = iota
	LoopRunning
	LoopCrashed
	LoopRestarting
	// LoopFailed: gave up after exhausting the restart policy.
	LoopFailed
)

func (s LoopState) String() string {
	switch s {
	case LoopStopped:
		return "stopped"
	case LoopRunning:
		return "running"
	case LoopCrashed:
		return "crashed"
	case LoopRestarting:
		return "restarting"
	case LoopFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RestartPolicy bounds automatic restarts. MaxRestarts 0 means unlimited.
type RestartPolicy struct {
	MaxRestarts int
	Backoff     time.Duration
}

// supervisor runs body on its own goroutine and restarts it when it
// panics or returns an error. A nil return means a clean stop.
type supervisor struct {
	policy RestartPolicy
	body   func() error

	// onCrash is called with the crash number and cause before each
	// restart; onFail once when the policy is exhausted.
	onCrash func(n int, err error)
	onFail  func(n int, err error)

	state   atomic.Int32
	crashes int
	exited  chan struct{}
}

func newSupervisor(policy RestartPolicy, body func() error) *supervisor {
	return &supervisor{
		policy: policy,
		body:   body,
		exited: make(chan struct{}),
	}
}

func (s *supervisor) start(stop <-chan struct{}) {
	s.state.Store(int32(LoopRunning))
	go s.run(stop)
}

func (s *supervisor) State() LoopState { return LoopState(s.state.Load()) }

// Exited is closed when the supervisor stops for good.
func (s *supervisor) Exited() <-chan struct{} { return s.exited }

func (s *supervisor) run(stop <-chan struct{}) {
	defer close(s.exited)

	for {
		s.state.Store(int32(LoopRunning))
		err := s.runOnce()
		if err == nil {
			s.state.Store(int32(LoopStopped))
			return
		}

		s.state.Store(int32(LoopCrashed))
		s.crashes++
		if s.policy.MaxRestarts > 0 && s.crashes > s.policy.MaxRestarts {
			s.state.Store(int32(LoopFailed))
			if s.onFail != nil {
				s.onFail(s.crashes, err)
			}
			return
		}
		if s.onCrash != nil {
			s.onCrash(s.crashes, err)
		}

		s.state.Store(int32(LoopRestarting))
		select {
		case <-stop:
			s.state.Store(int32(LoopStopped))
			return
		case <-time.After(s.policy.Backoff):
		}
	}
}

func (s *supervisor) runOnce() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.body()
}
