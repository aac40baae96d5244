// Package iterx contains small helpers for working with range-over-func
// iterators that the standard iter package does not provide directly.
package iterx

import "iter"

// Of returns an iterator over the given values, in order.
func Of[T any](values ...T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, v := range values {
			if !yield(v) {
				return
			}
		}
	}
}

// Exhaust drains seq without collecting its values; useful for triggering
// side effects (such as a panic) in iterators that are not otherwise
// consumed.
func Exhaust[T any](seq iter.Seq[T]) {
	for range seq {
	}
}
