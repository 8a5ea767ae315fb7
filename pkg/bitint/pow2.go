/*
Package bitint provides the power-of-two helpers used to size analysis
frames. FFT-based onset detection needs a power-of-two frame, and the
configuration layer uses NextPowerOfTwo to suggest a valid size when a user
supplies one that is not.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Suggest a frame size for a rejected configuration value
	suggestion := bitint.NextPowerOfTwo(1000) // Returns 1024

	// Verify the analysis frame can feed a radix-2 FFT
	isValid := bitint.IsPowerOfTwo(frameSize)

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before taking the bit length so that an exact
power of two maps to itself:

	size = 8:  bits.Len(7) = 3, 1 << 3 = 8
	size = 9:  bits.Len(8) = 4, 1 << 4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
//
// Examples:
//
//	Input  Output
//	1000   1024
//	1024   1024
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of two has
// a single bit set, so clearing its lowest set bit with n&(n-1) leaves zero.
//
// Examples:
//
//	Input  Output  Binary
//	1024   true    10000000000 & 01111111111 = 0
//	1000   false   1111101000 & 1111100111 = 1111100000
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
