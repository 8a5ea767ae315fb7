// SPDX-License-Identifier: MIT
package beat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebufferEmitsExactHops(t *testing.T) {
	const hop = 8

	var got [][]float32
	r := NewRebuffer(hop, func(h []float32) {
		got = append(got, append([]float32(nil), h...))
	})

	var stream []float32
	next := float32(0)
	for _, n := range []int{3, 5, 0, 17, 1, 8, 2, 11} {
		block := make([]float32, n)
		for i := range block {
			block[i] = next
			next++
		}
		stream = append(stream, block...)
		r.Write(block)
	}

	full := len(stream) / hop
	assert.Len(t, got, full)
	for i, h := range got {
		assert.Len(t, h, hop)
		assert.Equal(t, stream[i*hop:(i+1)*hop], h, "hop %d", i)
	}
	assert.Equal(t, len(stream)%hop, r.Pending())

	r.Reset()
	assert.Zero(t, r.Pending())
}

func TestRebufferHotPath(t *testing.T) {
	r := NewRebuffer(testHop, func([]float32) {})
	block := make([]float32, 300)

	allocs := testing.AllocsPerRun(100, func() {
		r.Write(block)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Rebuffer.Write, got %.1f", allocs)
	}
}
