// SPDX-License-Identifier: MIT
package analysis

import "math"

const (
	historyHops   = 512  // Minimum ODF history length
	estimateEvery = 8    // Hops between period re-estimates
	onsetFloor    = 1e-9 // ODF peaks at or below this are noise
)

// tempoTracker turns the onset detection function into beat decisions. It
// keeps a ring of recent ODF values, periodically estimates the beat period
// from their autocorrelation and uses that period to gate peak picking.
type tempoTracker struct {
	history []float64 // Ring of ODF values
	head    int       // Next write position
	count   int       // Valid values in history

	linear []float64 // Mean-removed chronological copy of history
	acf    []float64 // Autocorrelation indexed by lag

	minLag, maxLag int     // Period search range in hops
	beta           float64 // Rayleigh weighting peak in hops
	hopSeconds     float64
	sensitivity    float64

	period        float64 // Current period estimate in hops, 0 while unknown
	sinceBeat     int
	sinceEstimate int
}

func newTempoTracker(p Params) *tempoTracker {
	hopSeconds := p.hopSeconds()
	minLag := max(2, int(math.Floor(60/(p.MaxBPM*hopSeconds))))
	maxLag := max(minLag+1, int(math.Ceil(60/(p.MinBPM*hopSeconds))))
	capacity := max(historyHops, 4*maxLag)

	// Weight the search toward 120 bpm, the most common tempo in practice.
	beta := min(max(60/(120*hopSeconds), float64(minLag)), float64(maxLag))

	return &tempoTracker{
		history:     make([]float64, capacity),
		linear:      make([]float64, capacity),
		acf:         make([]float64, maxLag+2),
		minLag:      minLag,
		maxLag:      maxLag,
		beta:        beta,
		hopSeconds:  hopSeconds,
		sensitivity: p.Sensitivity,
		sinceBeat:   maxLag,
	}
}

// at returns the ODF value k hops back, 0 for hops not yet seen.
func (t *tempoTracker) at(k int) float64 {
	if k >= t.count {
		return 0
	}
	i := t.head - 1 - k
	if i < 0 {
		i += len(t.history)
	}
	return t.history[i]
}

// push records the ODF value of the newest frame and reports whether a beat
// is declared for it.
func (t *tempoTracker) push(odf float64) bool {
	t.history[t.head] = odf
	t.head = (t.head + 1) % len(t.history)
	if t.count < len(t.history) {
		t.count++
	}
	t.sinceBeat++
	t.sinceEstimate++

	if t.sinceEstimate >= estimateEvery && t.count >= 2*t.maxLag+2 {
		t.sinceEstimate = 0
		t.estimatePeriod()
	}

	return t.detect()
}

// detect picks a peak one hop back, so the decision lags the onset by a hop.
func (t *tempoTracker) detect() bool {
	if t.count < 3 {
		return false
	}

	peak := t.at(1)
	if peak <= onsetFloor || peak <= t.at(2) || peak < t.at(0) {
		return false
	}

	mean, std := t.stats()
	if peak <= mean+t.sensitivity*std {
		return false
	}

	earliest := t.minLag
	if t.period > 0 {
		earliest = max(earliest, int(0.75*t.period))
	}
	if t.sinceBeat < earliest {
		return false
	}

	t.sinceBeat = 0
	return true
}

func (t *tempoTracker) stats() (mean, std float64) {
	n := float64(t.count)
	for k := range t.count {
		mean += t.at(k)
	}
	mean /= n

	var variance float64
	for k := range t.count {
		d := t.at(k) - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / n)
}

func (t *tempoTracker) estimatePeriod() {
	n := t.count
	size := len(t.history)
	start := t.head - n
	if start < 0 {
		start += size
	}

	var mean float64
	for i := range n {
		v := t.history[(start+i)%size]
		t.linear[i] = v
		mean += v
	}
	mean /= float64(n)
	for i := range n {
		t.linear[i] -= mean
	}

	for lag := t.minLag - 1; lag <= t.maxLag+1; lag++ {
		var sum float64
		for i := 0; i+lag < n; i++ {
			sum += t.linear[i] * t.linear[i+lag]
		}
		t.acf[lag] = sum / float64(n-lag)
	}

	best, bestScore := 0, 0.0
	for lag := t.minLag; lag <= t.maxLag; lag++ {
		score := t.rayleigh(float64(lag)) * (t.acf[lag-1] + t.acf[lag] + t.acf[lag+1])
		if score > bestScore {
			best, bestScore = lag, score
		}
	}

	t.period = float64(best)
}

// rayleigh weights a candidate lag by a Rayleigh distribution peaking at beta.
func (t *tempoTracker) rayleigh(lag float64) float64 {
	b2 := t.beta * t.beta
	return lag / b2 * math.Exp(-lag*lag/(2*b2))
}
