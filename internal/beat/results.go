// SPDX-License-Identifier: MIT
package beat

import (
	"math"
	"sync/atomic"
	"time"
)

// Reading is one consumer-side snapshot of the tracker output.
type Reading struct {
	BPM      float64   `json:"bpm"`   // Last published tempo, 0 until two beats have been seen.
	Loudness float64   `json:"vol"`   // RMS of the most recent frame.
	Beats    uint64    `json:"beats"` // Beats detected since the previous poll.
	Time     time.Time `json:"time"`  // When the snapshot was taken.
}

// Results is the state shared between the audio callback (single writer) and
// any number of polling readers.
//
// bpm and loudness are independent scalars; a reader sees the latest store,
// possibly a few hops stale, never a torn value. pending is an increment /
// swap pair, so a drain never loses or double counts a beat. Nothing here is
// transactionally consistent across fields.
type Results struct {
	bpm      atomic.Uint64 // math.Float64bits
	loudness atomic.Uint64 // math.Float64bits
	pending  atomic.Uint64
}

// PublishBPM stores a new tempo. Producer only.
func (r *Results) PublishBPM(v float64) {
	r.bpm.Store(math.Float64bits(v))
}

// PublishLoudness stores a new loudness value. Producer only.
func (r *Results) PublishLoudness(v float64) {
	r.loudness.Store(math.Float64bits(v))
}

// IncrementBeats counts one detected beat. Producer only.
func (r *Results) IncrementBeats() {
	r.pending.Add(1)
}

// DrainBeats returns the number of beats counted since the previous drain
// and resets the counter in one atomic step. Concurrent drains race for
// which caller observes a given beat, but each beat is returned exactly once.
func (r *Results) DrainBeats() uint64 {
	return r.pending.Swap(0)
}

func (r *Results) BPM() float64 {
	return math.Float64frombits(r.bpm.Load())
}

func (r *Results) Loudness() float64 {
	return math.Float64frombits(r.loudness.Load())
}

// Poll drains the beat counter and then reads the scalars, so the returned
// tempo is at least as recent as the drained beats.
func (r *Results) Poll() Reading {
	beats := r.DrainBeats()
	return Reading{
		BPM:      r.BPM(),
		Loudness: r.Loudness(),
		Beats:    beats,
	}
}
