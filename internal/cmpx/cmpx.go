// Package cmpx contains small extensions to the standard cmp package.
package cmpx

import "cmp"

// Ordering is an ordering for T, with the same signature as cmp.Compare.
type Ordering[T any] func(T, T) int

// Key returns an ordering for T according to a key function.
func Key[T any, U cmp.Ordered](key func(T) U) Ordering[T] {
	return func(a, b T) int { return cmp.Compare(key(a), key(b)) }
}
