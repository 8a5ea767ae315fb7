// SPDX-License-Identifier: MIT
package audio

import (
	"sync/atomic"
	"time"

	"tempo/internal/beat"

	"github.com/google/uuid"
)

// State is a step of the stream lifecycle.
type State int32

const (
	StateIdle State = iota
	StateOpening
	StateRunning
	StateStopping
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateOpening:
		return "Opening"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateClosed:
		return "Closed"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Session is a live tracking context returned by Tracker.Start. It owns the
// open stream until Tracker.Stop releases it. The read methods are safe for
// concurrent use and never block; they are meaningful while Running.
type Session struct {
	id      string
	results beat.Results
	backend Backend
	stream  Stream
	state   atomic.Int32
	started time.Time
}

func newSession() *Session {
	s := &Session{id: uuid.New().String()}
	s.state.Store(int32(StateOpening))
	return s
}

// ID identifies the session in logs and to remote consumers.
func (s *Session) ID() string {
	return s.id
}

// Poll drains the pending beats and reads the latest tempo and loudness.
func (s *Session) Poll() beat.Reading {
	r := s.results.Poll()
	r.Time = time.Now()
	return r
}

// Beats drains and returns the number of beats detected since the last drain.
func (s *Session) Beats() uint64 {
	return s.results.DrainBeats()
}

// BPM returns the latest tempo estimate, 0 until two beats have been seen.
func (s *Session) BPM() float64 {
	return s.results.BPM()
}

// Loudness returns the RMS of the most recent frame.
func (s *Session) Loudness() float64 {
	return s.results.Loudness()
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Uptime is the time since the stream started running.
func (s *Session) Uptime() time.Duration {
	if s.started.IsZero() {
		return 0
	}
	return time.Since(s.started)
}

// Done returns a channel closed when a finite source (a file) has delivered
// all of its audio. Live devices never finish; for them Done returns nil.
func (s *Session) Done() <-chan struct{} {
	if f, ok := s.stream.(interface{ Done() <-chan struct{} }); ok {
		return f.Done()
	}
	return nil
}
