// Package mathx holds small generic range helpers used for config checks.
package mathx

import "golang.org/x/exp/constraints"

// Between reports whether v lies in the closed range [lo, hi]. Swapped
// bounds are accepted.
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo <= v && v <= hi
}

// Clamp pins v into [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
