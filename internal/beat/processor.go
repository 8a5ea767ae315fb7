// SPDX-License-Identifier: MIT
package beat

// Detector is the onset/tempo analysis engine. ProcessFrame is called exactly
// once per hop, in hop order, with the full sliding window; the engine is
// stateful and a skipped or reordered hop corrupts it for the rest of the run.
// BeatInLastFrame reports whether a beat landed in the frame just processed.
// Implementations run on the audio callback thread and must not block or
// allocate.
type Detector interface {
	ProcessFrame(frame []float64)
	BeatInLastFrame() bool
}

// BeatHook observes every detected beat on the callback thread. bpm is 0 for
// the first beat of a run. Hooks must return quickly.
type BeatHook func(hop uint64, bpm float64)

// Processor drives one hop of the pipeline: frame assembly, loudness, beat
// detection and tempo tracking, publishing everything into Results.
//
// Performance Critical:
// - Called from the audio callback once per hop
// - Pre-allocated frame only, no allocations in the hot path
type Processor struct {
	frame    *Frame
	detector Detector
	tempo    *TempoTracker
	results  *Results
	hook     BeatHook
	hops     uint64
}

func NewProcessor(hop, frameSize int, sampleRate float64, detector Detector, results *Results) *Processor {
	return &Processor{
		frame:    NewFrame(hop, frameSize),
		detector: detector,
		tempo:    NewTempoTracker(hop, sampleRate),
		results:  results,
	}
}

// SetBeatHook installs fn as the beat observer. It must be called before the
// processor is handed to the audio callback.
func (p *Processor) SetBeatHook(fn BeatHook) {
	p.hook = fn
}

// ProcessHop consumes one hop of fresh samples. It is the audio callback.
func (p *Processor) ProcessHop(in []float32) {
	p.frame.AddHop(in)
	samples := p.frame.Samples()

	p.results.PublishLoudness(RMS(samples))

	p.detector.ProcessFrame(samples)
	if p.detector.BeatInLastFrame() {
		p.results.IncrementBeats()

		bpm, ok := p.tempo.OnBeat(p.hops)
		if ok {
			p.results.PublishBPM(bpm)
		}
		if p.hook != nil {
			p.hook(p.hops, bpm)
		}
	}

	p.hops++
}

// Hops returns the number of hops processed so far. Callback thread only.
func (p *Processor) Hops() uint64 {
	return p.hops
}
