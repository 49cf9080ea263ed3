// Package mathutil includes helpers for deterministic integer arithmetic.
package mathutil

// IntegerSquareRoot defines a function that returns the largest possible
// integer root of a number using Newton's method over unsigned integers.
// The iteration is strictly decreasing and therefore bounded, so every
// recomputation of the same input yields an identical result on any platform.
func IntegerSquareRoot(n uint64) uint64 {
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// Min returns the smaller of two uint64 values.
func Min(a uint64, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of two uint64 values.
func Max(a uint64, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
