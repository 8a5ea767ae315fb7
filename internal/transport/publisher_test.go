// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"tempo/internal/beat"
	"tempo/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// resultsSource adapts beat.Results to Source.
type resultsSource struct {
	results *beat.Results
	polls   atomic.Int64
}

func (s *resultsSource) Poll() beat.Reading {
	s.polls.Add(1)
	r := s.results.Poll()
	r.Time = time.Now()
	return r
}

type failingTransport struct{ closeErr error }

func (failingTransport) Send(beat.Reading) error { return errors.New("unreachable") }
func (f failingTransport) Close() error { return f.closeErr }

func TestPublisherDeliversEveryBeat(t *testing.T) {
	defer goleak.VerifyNone(t)

	var results beat.Results
	src := &resultsSource{results: &results}
	mock := &utils.MockTransport{}
	p := NewPublisher(src, time.Millisecond, failingTransport{}, mock)

	p.Start()
	p.Start() // no-op while running

	const beats = 500
	for i := range beats {
		results.IncrementBeats()
		results.PublishBPM(float64(100 + i%5))
		if i%50 == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	results.PublishLoudness(0.3)

	require.Eventually(t, func() bool { return src.polls.Load() > 5 }, time.Second, time.Millisecond)
	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())

	// The final poll on Stop picks up whatever the last tick missed.
	assert.EqualValues(t, beats, mock.TotalBeats())
	readings := mock.Readings()
	require.NotEmpty(t, readings)
	last := readings[len(readings)-1]
	assert.InDelta(t, 0.3, last.Loudness, 1e-9)
	assert.False(t, last.Time.IsZero())

	require.NoError(t, p.Close())
	assert.True(t, mock.Closed())
}

func TestPublisherCloseJoinsErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	p := NewPublisher(&resultsSource{results: new(beat.Results)}, 0,
		failingTransport{closeErr: errA}, failingTransport{closeErr: errB})
	assert.Equal(t, DefaultInterval, p.interval)

	err := p.Close()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestPublisherRestart(t *testing.T) {
	defer goleak.VerifyNone(t)

	var results beat.Results
	mock := &utils.MockTransport{}
	p := NewPublisher(&resultsSource{results: &results}, time.Millisecond, mock)

	for range 2 {
		p.Start()
		results.IncrementBeats()
		require.NoError(t, p.Stop())
	}
	assert.EqualValues(t, 2, mock.TotalBeats())
}
