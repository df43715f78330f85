// SPDX-License-Identifier: MIT
/*
Package bitint provides the small bit-manipulation helpers the DSP path
relies on for buffer and FFT sizing. All operations are O(1), allocation
free, and safe to call from the acquisition hot path.
*/
package bitint

// IsPowerOfTwo reports whether n is a positive power of 2.
// FFT window and bin counts must satisfy this.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of 2 >= n.
// Returns 1 for n <= 0.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Log2 returns floor(log2(n)) for n > 0, and 0 otherwise.
func Log2(n int) int {
	l := 0
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}
