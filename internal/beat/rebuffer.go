// SPDX-License-Identifier: MIT
package beat

// Rebuffer cuts sample blocks of any length into consecutive hops of a fixed
// size for drivers that cannot guarantee one hop per callback. Complete hops
// are handed to the sink in order; a trailing partial hop is held until the
// next Write. The slice passed to the sink is only valid for that call.
type Rebuffer struct {
	buf  []float32
	n    int
	sink func([]float32)
}

func NewRebuffer(hop int, sink func([]float32)) *Rebuffer {
	return &Rebuffer{
		buf:  make([]float32, hop),
		sink: sink,
	}
}

// Write appends in to the stream and emits every hop it completes.
func (r *Rebuffer) Write(in []float32) {
	hop := len(r.buf)
	for len(in) > 0 {
		// Whole hops pass straight through when nothing is buffered.
		if r.n == 0 && len(in) >= hop {
			r.sink(in[:hop])
			in = in[hop:]
			continue
		}

		c := copy(r.buf[r.n:], in)
		r.n += c
		in = in[c:]
		if r.n == hop {
			r.sink(r.buf)
			r.n = 0
		}
	}
}

// Pending returns the number of buffered samples not yet emitted.
func (r *Rebuffer) Pending() int {
	return r.n
}

// Reset drops any buffered samples.
func (r *Rebuffer) Reset() {
	r.n = 0
}
