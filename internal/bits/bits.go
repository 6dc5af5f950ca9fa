// Package bits provides the fixed-width bit operations the Salsa core and the
// experiment kernel build on: rotation, single-bit read, and single-bit
// toggle on an unsigned 32-bit word.
package bits

import "math/bits"

// RotateLeft32 returns w rotated left by n bits, n taken modulo 32.
func RotateLeft32(w uint32, n int) uint32 {
	return bits.RotateLeft32(w, n)
}

// Bit returns bit b of w as 0 or 1. b must be in [0, 32).
func Bit(w uint32, b int) uint32 {
	return (w >> uint(b)) & 1
}

// ToggleBit flips bit b of w and returns the result. b must be in [0, 32).
func ToggleBit(w uint32, b int) uint32 {
	return w ^ (1 << uint(b))
}

// SetBit sets bit b of w and returns the result. b must be in [0, 32).
func SetBit(w uint32, b int) uint32 {
	return w | (1 << uint(b))
}

// UnsetBit clears bit b of w and returns the result. b must be in [0, 32).
func UnsetBit(w uint32, b int) uint32 {
	return w &^ (1 << uint(b))
}
