// SPDX-License-Identifier: MIT
package beat

// BPM converts the distance between two beats, counted in hops, into beats
// per minute: 60 / (distance * hopSeconds). A zero distance or hop duration
// has no defined tempo and yields 0.
func BPM(distance uint64, hopSeconds float64) float64 {
	if distance == 0 || hopSeconds <= 0 {
		return 0
	}
	return 60 / (float64(distance) * hopSeconds)
}

// HopSeconds returns the duration of one hop of hop samples at sampleRate.
func HopSeconds(hop int, sampleRate float64) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(hop) / sampleRate
}

// TempoTracker turns the hop indices of consecutive beats into a tempo.
type TempoTracker struct {
	hopSeconds float64
	lastBeat   uint64
	seen       bool
}

func NewTempoTracker(hop int, sampleRate float64) *TempoTracker {
	return &TempoTracker{hopSeconds: HopSeconds(hop, sampleRate)}
}

// OnBeat records a beat at hop and returns the tempo implied by the distance
// to the previous beat. The first beat has no interval to measure, so ok is
// false and no tempo should be published for it.
func (t *TempoTracker) OnBeat(hop uint64) (bpm float64, ok bool) {
	if !t.seen {
		t.seen = true
		t.lastBeat = hop
		return 0, false
	}

	distance := hop - t.lastBeat
	t.lastBeat = hop
	if distance == 0 {
		return 0, false
	}

	return BPM(distance, t.hopSeconds), true
}

// LastBeatHop returns the hop of the most recent beat, and false if no beat
// has been seen yet.
func (t *TempoTracker) LastBeatHop() (uint64, bool) {
	return t.lastBeat, t.seen
}
