// SPDX-License-Identifier: MIT
package analysis

import (
	"slices"
	"testing"

	"tempo/internal/beat"
	"tempo/internal/config"
	"tempo/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHop        = 512
	testFrameSize  = 1024
	testSampleRate = 44100.0
)

func testParams() Params {
	return Params{
		HopSize:         testHop,
		FrameSize:       testFrameSize,
		SampleRate:      testSampleRate,
		Window:          Hann,
		MinBPM:          config.DefaultMinBPM,
		MaxBPM:          config.DefaultMaxBPM,
		Sensitivity:     config.DefaultSensitivity,
		EnergyThreshold: config.DefaultEnergyThreshold,
		EnergyRatio:     config.DefaultEnergyRatio,
	}
}

// run pushes samples through a Processor and returns the hops of every beat.
func run(t *testing.T, detector beat.Detector, samples []float32, results *beat.Results) []uint64 {
	t.Helper()
	p := beat.NewProcessor(testHop, testFrameSize, testSampleRate, detector, results)
	var beats []uint64
	p.SetBeatHook(func(hop uint64, _ float64) {
		beats = append(beats, hop)
	})
	for _, block := range utils.SplitHops(samples, testHop) {
		p.ProcessHop(block)
	}
	return beats
}

func medianInterval(hops []uint64) uint64 {
	intervals := make([]uint64, 0, len(hops))
	for i := 1; i < len(hops); i++ {
		intervals = append(intervals, hops[i]-hops[i-1])
	}
	slices.Sort(intervals)
	return intervals[len(intervals)/2]
}

func TestSpectralDetectorClickTrack(t *testing.T) {
	d, err := NewSpectralDetector(testParams())
	require.NoError(t, err)

	var results beat.Results
	samples := utils.GenerateClickTrack(int(10*testSampleRate), testSampleRate, 120)
	beats := run(t, d, samples, &results)

	// 20 clicks in 10 seconds; the first few train the threshold.
	require.GreaterOrEqual(t, len(beats), 12)
	assert.LessOrEqual(t, len(beats), 21)

	// 120 bpm is a beat every ~43 hops.
	assert.InDelta(t, 43, medianInterval(beats), 3)
	assert.InDelta(t, 120, d.Tempo(), 10)
	assert.InDelta(t, 43, d.Period(), 2)
	assert.EqualValues(t, len(beats), results.DrainBeats())
	assert.Greater(t, results.BPM(), 0.0)
}

func TestSpectralDetectorSilence(t *testing.T) {
	d, err := NewSpectralDetector(testParams())
	require.NoError(t, err)

	var results beat.Results
	beats := run(t, d, make([]float32, 5*int(testSampleRate)), &results)

	assert.Empty(t, beats)
	assert.Zero(t, d.Period())
	assert.Zero(t, d.Tempo())
	assert.Zero(t, results.BPM())
	assert.Zero(t, results.Loudness())
}

func TestSpectralDetectorRejectsBadGeometry(t *testing.T) {
	p := testParams()
	p.FrameSize = 1000
	_, err := NewSpectralDetector(p)
	assert.ErrorContains(t, err, "power of 2")

	p = testParams()
	p.HopSize = 2048
	_, err = NewSpectralDetector(p)
	assert.ErrorContains(t, err, "hop size")

	p = testParams()
	p.MaxBPM = p.MinBPM
	_, err = NewSpectralDetector(p)
	assert.ErrorContains(t, err, "tempo range")
}

func TestSpectralDetectorFrameLengthPanics(t *testing.T) {
	d, err := NewSpectralDetector(testParams())
	require.NoError(t, err)
	assert.Panics(t, func() { d.ProcessFrame(make([]float64, testFrameSize/2)) })
}

func TestSpectralDetectorHotPath(t *testing.T) {
	d, err := NewSpectralDetector(testParams())
	require.NoError(t, err)

	frame := make([]float64, testFrameSize)
	for i, s := range utils.GenerateClickTrack(testFrameSize, testSampleRate, 120) {
		frame[i] = float64(s)
	}

	allocs := testing.AllocsPerRun(100, func() {
		d.ProcessFrame(frame)
	})
	assert.Zero(t, allocs, "ProcessFrame should not allocate")
}

func TestEnergyDetectorClickTrack(t *testing.T) {
	d, err := NewEnergyDetector(testParams())
	require.NoError(t, err)

	var results beat.Results
	samples := utils.GenerateClickTrack(int(10*testSampleRate), testSampleRate, 120)
	beats := run(t, d, samples, &results)

	assert.InDelta(t, 20, len(beats), 1)
	assert.InDelta(t, 43, medianInterval(beats), 1)
	assert.InDelta(t, 120, results.BPM(), 5)
}

func TestEnergyDetectorSteadyTone(t *testing.T) {
	d, err := NewEnergyDetector(testParams())
	require.NoError(t, err)

	var results beat.Results
	samples := append(make([]float32, 10*testHop), utils.GenerateSineWave(5*int(testSampleRate), testSampleRate, 440)...)
	beats := run(t, d, samples, &results)

	// Only the tone's onset is a beat; a steady level is not.
	assert.Len(t, beats, 1)
	assert.InDelta(t, 0.9/1.4142, results.Loudness(), 0.01)
}

func TestEnergyDetectorIgnoresQuietSignal(t *testing.T) {
	d, err := NewEnergyDetector(testParams())
	require.NoError(t, err)

	frame := make([]float64, testFrameSize)
	for i := range frame {
		frame[i] = 0.001
	}
	d.ProcessFrame(frame)
	assert.False(t, d.BeatInLastFrame())
}

func TestNewDetector(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*config.Config)
		want    any
		wantErr string
	}{
		{name: "spectral", modify: func(*config.Config) {}, want: &SpectralDetector{}},
		{name: "energy", modify: func(c *config.Config) { c.Analysis.Engine = config.EngineEnergy }, want: &EnergyDetector{}},
		{name: "unknown engine", modify: func(c *config.Config) { c.Analysis.Engine = "neural" }, wantErr: "unknown analysis engine"},
		{name: "unknown window", modify: func(c *config.Config) { c.Analysis.Window = "kaiser" }, wantErr: "window function"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			tt.modify(cfg)
			d, err := NewDetector(cfg)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, d)
		})
	}
}

func TestParseWindowFunc(t *testing.T) {
	for _, w := range []WindowFunc{BartlettHann, Blackman, BlackmanNuttall, Hann, Hamming, Lanczos, Nuttall} {
		got, err := ParseWindowFunc(w.String())
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}

	got, err := ParseWindowFunc("")
	assert.NoError(t, err)
	assert.Equal(t, Hann, got)

	got, err = ParseWindowFunc("bogus")
	assert.Error(t, err)
	assert.Equal(t, Hann, got)
}

func BenchmarkSpectralDetector(b *testing.B) {
	d, err := NewSpectralDetector(testParams())
	require.NoError(b, err)
	frame := make([]float64, testFrameSize)
	for i, s := range utils.GenerateSineWave(testFrameSize, testSampleRate, 440) {
		frame[i] = float64(s)
	}

	b.ReportAllocs()
	for b.Loop() {
		d.ProcessFrame(frame)
	}
}
