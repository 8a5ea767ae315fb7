// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"

	"tempo/internal/beat"
	applog "tempo/internal/log"
	"tempo/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64    // Buffer for windowed input signal.
	fftOutput []complex128 // Buffer for FFT complex results.
	magnitude []float64    // Magnitudes of the current frame.
	previous  []float64    // Magnitudes of the previous frame.
	window    []float64    // Pre-calculated window coefficients.
}

// SpectralDetector is the default beat engine. Each frame is windowed and
// transformed; the half-wave rectified spectral flux against the previous
// frame forms the onset detection function (ODF), which feeds a tempoTracker
// that decides whether a beat landed in the frame.
//
// The detector is owned by the audio callback thread. After construction it
// performs no allocations.
type SpectralDetector struct {
	fftCalculator *fourier.FFT
	fftSize       int
	workspace     fftWorkspace
	tracker       *tempoTracker
	primed        bool // previous holds a real frame
	beat          bool
}

// Compile-time checks for interface implementations.
var _ beat.Detector = (*SpectralDetector)(nil)

// NewSpectralDetector builds a spectral-flux engine for frames of
// p.FrameSize samples advanced p.HopSize samples at a time.
func NewSpectralDetector(p Params) (*SpectralDetector, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if !bitint.IsPowerOfTwo(p.FrameSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", p.FrameSize)
	}

	windowCoeffs := make([]float64, p.FrameSize)
	applyWindow(windowCoeffs, p.Window)

	// FFT output size for real input is N/2 + 1 complex values.
	magnitudeSize := p.FrameSize/2 + 1

	applog.Debugf("Analysis: Initializing SpectralDetector (Frame: %d, Hop: %d, SampleRate: %.1f Hz, Window: %v)",
		p.FrameSize, p.HopSize, p.SampleRate, p.Window)

	return &SpectralDetector{
		fftCalculator: fourier.NewFFT(p.FrameSize),
		fftSize:       p.FrameSize,
		tracker:       newTempoTracker(p),
		workspace: fftWorkspace{
			input:     make([]float64, p.FrameSize),
			fftOutput: make([]complex128, magnitudeSize),
			magnitude: make([]float64, magnitudeSize),
			previous:  make([]float64, magnitudeSize),
			window:    windowCoeffs,
		},
	}, nil
}

// ProcessFrame analyses one frame. It panics if the frame length differs from
// the configured frame size.
func (d *SpectralDetector) ProcessFrame(frame []float64) {
	if len(frame) != d.fftSize {
		panic(fmt.Sprintf("analysis: frame of %d samples, want %d", len(frame), d.fftSize))
	}

	ws := &d.workspace
	for i, s := range frame {
		ws.input[i] = s * ws.window[i]
	}

	d.fftCalculator.Coefficients(ws.fftOutput, ws.input)

	var flux float64
	for i, c := range ws.fftOutput {
		m := cmplx.Abs(c)
		ws.magnitude[i] = m
		if diff := m - ws.previous[i]; diff > 0 {
			flux += diff
		}
	}
	ws.magnitude, ws.previous = ws.previous, ws.magnitude

	// The first frame has nothing to diff against.
	if !d.primed {
		d.primed = true
		flux = 0
	}

	d.beat = d.tracker.push(flux)
}

func (d *SpectralDetector) BeatInLastFrame() bool {
	return d.beat
}

// Period returns the current beat period estimate in hops, 0 while unknown.
func (d *SpectralDetector) Period() float64 {
	return d.tracker.period
}

// Tempo returns the engine's own tempo estimate from the autocorrelation
// period, 0 while unknown.
func (d *SpectralDetector) Tempo() float64 {
	if d.tracker.period == 0 {
		return 0
	}
	return 60 / (d.tracker.period * d.tracker.hopSeconds)
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// String returns the canonical name of the window function.
func (w WindowFunc) String() string {
	switch w {
	case BartlettHann:
		return "BartlettHann"
	case Blackman:
		return "Blackman"
	case BlackmanNuttall:
		return "BlackmanNuttall"
	case Hann:
		return "Hann"
	case Hamming:
		return "Hamming"
	case Lanczos:
		return "Lanczos"
	case Nuttall:
		return "Nuttall"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// applyWindow fills coeffs with the selected window. Unknown types fall back
// to Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// gonum windows scale the slice in place, so start from ones.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		applog.Warnf("Analysis: Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
