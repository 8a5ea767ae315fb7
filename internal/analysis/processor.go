// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"

	"tempo/internal/beat"
	"tempo/internal/config"
)

// Params configures a beat detection engine. Every engine is constructed for
// a fixed hop and frame geometry and must then be fed gapless frames.
type Params struct {
	HopSize    int     // Samples between consecutive frames.
	FrameSize  int     // Samples per frame.
	SampleRate float64 // Sample rate of the input audio (Hz).
	Window     WindowFunc

	MinBPM      float64 // Slowest tempo the period estimate may settle on.
	MaxBPM      float64 // Fastest tempo; also bounds the minimum beat spacing.
	Sensitivity float64 // Onset threshold in standard deviations above the mean ODF.

	EnergyThreshold float64 // Energy engine: minimum frame RMS.
	EnergyRatio     float64 // Energy engine: minimum RMS rise over the previous frame.
}

// ParamsFromConfig maps the analysis and audio sections of cfg onto Params.
func ParamsFromConfig(cfg *config.Config) (Params, error) {
	windowType, err := ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		return Params{}, err
	}
	return Params{
		HopSize:         cfg.Audio.HopSize,
		FrameSize:       cfg.Audio.FrameSize,
		SampleRate:      cfg.Audio.SampleRate,
		Window:          windowType,
		MinBPM:          cfg.Analysis.MinBPM,
		MaxBPM:          cfg.Analysis.MaxBPM,
		Sensitivity:     cfg.Analysis.Sensitivity,
		EnergyThreshold: cfg.Analysis.EnergyThreshold,
		EnergyRatio:     cfg.Analysis.EnergyRatio,
	}, nil
}

func (p Params) validate() error {
	if p.HopSize <= 0 || p.HopSize > p.FrameSize {
		return fmt.Errorf("hop size %d must be in 1..%d", p.HopSize, p.FrameSize)
	}
	if p.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %f", p.SampleRate)
	}
	if p.MinBPM <= 0 || p.MaxBPM <= p.MinBPM {
		return fmt.Errorf("tempo range %.1f-%.1f bpm is invalid", p.MinBPM, p.MaxBPM)
	}
	return nil
}

// hopSeconds is the duration of one hop.
func (p Params) hopSeconds() float64 {
	return beat.HopSeconds(p.HopSize, p.SampleRate)
}

// NewDetector builds the engine named by cfg.Analysis.Engine.
func NewDetector(cfg *config.Config) (beat.Detector, error) {
	p, err := ParamsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Analysis.Engine {
	case config.EngineSpectral:
		return NewSpectralDetector(p)
	case config.EngineEnergy:
		return NewEnergyDetector(p)
	default:
		return nil, errors.New("unknown analysis engine: " + cfg.Analysis.Engine)
	}
}
