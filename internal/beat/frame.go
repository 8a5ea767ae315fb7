// SPDX-License-Identifier: MIT
package beat

import "fmt"

// Frame is the sliding analysis window. It always holds exactly Size()
// samples; every AddHop shifts the window left by Hop() samples and appends
// the new block at the tail.
type Frame struct {
	buf []float64
	hop int
}

// NewFrame allocates a zeroed frame of size samples advanced hop samples at a
// time. It panics unless 0 < hop <= size.
func NewFrame(hop, size int) *Frame {
	if hop <= 0 || hop > size {
		panic(fmt.Sprintf("beat: invalid frame geometry hop=%d size=%d", hop, size))
	}
	return &Frame{
		buf: make([]float64, size),
		hop: hop,
	}
}

// AddHop slides the window by one hop. in must hold exactly Hop() samples; a
// short or long block means the driver broke its contract and AddHop panics.
func (f *Frame) AddHop(in []float32) {
	if len(in) != f.hop {
		panic(fmt.Sprintf("beat: hop of %d samples, want %d", len(in), f.hop))
	}

	keep := len(f.buf) - f.hop
	copy(f.buf, f.buf[f.hop:])

	tail := f.buf[keep:]
	for i, s := range in {
		tail[i] = float64(s)
	}
}

// Samples returns the current window, oldest sample first. The slice is
// owned by the frame and is overwritten by the next AddHop.
func (f *Frame) Samples() []float64 {
	return f.buf
}

func (f *Frame) Hop() int  { return f.hop }
func (f *Frame) Size() int { return len(f.buf) }

// Reset zeroes the window.
func (f *Frame) Reset() {
	clear(f.buf)
}
