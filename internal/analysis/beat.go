// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"tempo/internal/beat"
	applog "tempo/internal/log"
)

// EnergyDetector flags a beat when the frame energy jumps. It is a light
// alternative to the spectral engine for percussive material: no FFT, no
// tempo model, only an RMS rise with a refractory period.
type EnergyDetector struct {
	threshold      float64 // Minimum frame RMS for a beat
	minEnergyRatio float64 // Minimum ratio over the previous frame
	lastEnergy     float64 // RMS of the previous frame
	minGap         int     // Hops that must pass between beats
	sinceBeat      int
	beat           bool
}

var _ beat.Detector = (*EnergyDetector)(nil)

func NewEnergyDetector(p Params) (*EnergyDetector, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	minGap := max(1, int(math.Floor(60/(p.MaxBPM*p.hopSeconds()))))
	applog.Debugf("Analysis: Initializing EnergyDetector (Threshold: %.3f, MinRatio: %.2f, MinGap: %d hops)",
		p.EnergyThreshold, p.EnergyRatio, minGap)

	return &EnergyDetector{
		threshold:      p.EnergyThreshold,
		minEnergyRatio: p.EnergyRatio,
		minGap:         minGap,
		sinceBeat:      minGap,
	}, nil
}

// ProcessFrame analyses the frame energy for a percussive onset.
func (d *EnergyDetector) ProcessFrame(frame []float64) {
	currentEnergy := beat.RMS(frame)
	d.sinceBeat++

	d.beat = currentEnergy > d.threshold &&
		(d.lastEnergy == 0 || currentEnergy/d.lastEnergy > d.minEnergyRatio) &&
		d.sinceBeat >= d.minGap
	if d.beat {
		d.sinceBeat = 0
	}

	d.lastEnergy = currentEnergy
}

func (d *EnergyDetector) BeatInLastFrame() bool {
	return d.beat
}
