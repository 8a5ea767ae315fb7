// SPDX-License-Identifier: MIT
/*
Package audio captures live audio and runs the beat tracking pipeline on it.

A Tracker owns the stream lifecycle:

	Idle -> Opening -> Running -> Stopping -> Closed
	            |                     |
	            +------> Error <------+

Start opens the backend and returns a Session; the backend's realtime
callback drives a beat.Processor that publishes into the Session's lock-free
results. Any goroutine may poll the Session. Stop aborts and closes the
stream.

Thread Safety:
  - The callback path never locks, allocates or logs
  - Session reads are atomic loads and a swap
  - The last error is kept per Tracker, so independent trackers never
    see each other's failures
*/
package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tempo/internal/analysis"
	"tempo/internal/beat"
	"tempo/internal/config"
	applog "tempo/internal/log"
)

// DetectorFactory builds the analysis engine for a new session.
type DetectorFactory func(cfg *config.Config) (beat.Detector, error)

// Option customises a Tracker.
type Option func(*Tracker)

// WithBackend replaces the backend selected by the configuration.
func WithBackend(b Backend) Option {
	return func(t *Tracker) { t.backend = b }
}

// WithDetectorFactory replaces the engine selected by the configuration.
func WithDetectorFactory(f DetectorFactory) Option {
	return func(t *Tracker) {
		t.newDetector = f
		t.customDetector = true
	}
}

// WithBeatHook registers fn to run on the callback thread for every beat. fn
// must not block.
func WithBeatHook(fn beat.BeatHook) Option {
	return func(t *Tracker) { t.hook = fn }
}

// Tracker starts and stops tracking sessions and remembers the last failure.
type Tracker struct {
	cfg         *config.Config
	backend     Backend
	newDetector DetectorFactory
	hook        beat.BeatHook

	customDetector bool // newDetector came from WithDetectorFactory

	current atomic.Pointer[Session] // Most recent session, failed or not

	mu      sync.Mutex
	lastErr error
}

func NewTracker(cfg *config.Config, opts ...Option) *Tracker {
	t := &Tracker{
		cfg:         cfg,
		newDetector: analysis.NewDetector,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start opens and starts a capture stream feeding a fresh pipeline. On
// failure every resource acquired so far is released, the error is recorded
// as the last error and no session is returned.
func (t *Tracker) Start() (_ *Session, err error) {
	s := newSession()
	t.current.Store(s)

	defer func() {
		if err != nil {
			s.state.Store(int32(StateError))
			t.setLastError(err)
			applog.Errorf("Audio: Start failed: %v", err)
		}
	}()

	if err := t.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	backend := t.backend
	if backend == nil {
		if backend, err = NewBackend(t.cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	detector, err := t.newDetector(t.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	a := t.cfg.Audio
	processor := beat.NewProcessor(a.HopSize, a.FrameSize, a.SampleRate, detector, &s.results)
	if t.hook != nil {
		processor.SetBeatHook(t.hook)
	}

	if err := backend.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialize, err)
	}
	defer func() {
		if err != nil {
			if terr := backend.Terminate(); terr != nil {
				err = errors.Join(err, fmt.Errorf("%w: %w", ErrTerminate, terr))
			}
		}
	}()

	stream, err := backend.OpenInputStream(streamParams(t.cfg), processor.ProcessHop)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenStream, err)
	}
	defer func() {
		if err != nil {
			if cerr := stream.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("%w: %w", ErrCloseStream, cerr))
			}
		}
	}()

	s.backend = backend
	s.stream = stream
	s.started = time.Now()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartStream, err)
	}

	s.state.Store(int32(StateRunning))
	engine := t.cfg.Analysis.Engine
	if t.customDetector {
		engine = fmt.Sprintf("%T", detector)
	}
	applog.Infof("Audio: Session %s tracking (%.0f Hz, hop %d, frame %d, engine %s)",
		s.ID(), a.SampleRate, a.HopSize, a.FrameSize, engine)
	return s, nil
}

// Stop aborts the stream without draining, closes it and terminates the
// backend. Close is attempted even if Abort fails. Only the first Stop of a
// running session does anything; later calls return nil.
//
// A session whose Close failed ends in StateError: its resources may have
// leaked and the caller should treat that as fatal.
func (t *Tracker) Stop(s *Session) error {
	if s == nil || !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return nil
	}

	var errs []error
	if err := s.stream.Abort(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrAbortStream, err))
	}

	closeErr := s.stream.Close()
	if closeErr != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrCloseStream, closeErr))
	}

	if err := s.backend.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrTerminate, err))
	}

	if closeErr != nil {
		s.state.Store(int32(StateError))
	} else {
		s.state.Store(int32(StateClosed))
	}

	err := errors.Join(errs...)
	if err != nil {
		t.setLastError(err)
		applog.Errorf("Audio: Stop failed: %v", err)
		return err
	}

	applog.Infof("Audio: Session %s stopped after %v", s.ID(), s.Uptime().Round(time.Millisecond))
	return nil
}

// State reports the lifecycle state of the most recent session, StateIdle if
// Start was never called.
func (t *Tracker) State() State {
	if s := t.current.Load(); s != nil {
		return s.State()
	}
	return StateIdle
}

// LastError returns the message of the most recent failed Start or Stop, or
// an empty string if none failed.
func (t *Tracker) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastErr == nil {
		return ""
	}
	return t.lastErr.Error()
}

// Err is LastError as an error value, for use with errors.Is.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *Tracker) setLastError(err error) {
	t.mu.Lock()
	t.lastErr = err
	t.mu.Unlock()
}
