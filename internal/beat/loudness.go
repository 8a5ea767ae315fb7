// SPDX-License-Identifier: MIT
package beat

import "math"

// RMS returns the root-mean-square amplitude of frame, sqrt(sum(x^2)/len).
// An empty frame has zero loudness.
func RMS(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}

	var sumSquare float64
	for _, s := range frame {
		sumSquare += s * s
	}

	return math.Sqrt(sumSquare / float64(len(frame)))
}
