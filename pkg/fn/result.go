// Package fn provides the generic Result type, slice helpers, bounded
// parallel mapping, and traced pipeline stages used across the engine.
package fn

import "fmt"

// Result[T] carries either a value or the error that prevented it. The
// zero value is a successful Result holding T's zero value.
type Result[T any] struct {
	val T
	err error
}

// Ok wraps a value in a successful Result.
func Ok[T any](v T) Result[T] { return Result[T]{val: v} }

// Err wraps an error in a failed Result.
func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// Errf builds a failed Result from a format string.
func Errf[T any](format string, args ...any) Result[T] {
	return Err[T](fmt.Errorf(format, args...))
}

// FromPair lifts a conventional (value, error) return into a Result.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

// IsOk reports whether the Result holds a value.
func (r Result[T]) IsOk() bool { return r.err == nil }

// IsErr reports whether the Result holds an error.
func (r Result[T]) IsErr() bool { return r.err != nil }

// Unwrap lowers the Result back to a (value, error) pair.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// UnwrapOr returns the value, or fallback when the Result failed.
func (r Result[T]) UnwrapOr(fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.val
}

// MapResult applies f to a successful Result and forwards failures.
func MapResult[T, U any](r Result[T], f func(T) U) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return Ok(f(r.val))
}

// Collect flattens a slice of Results into one. The first failure wins;
// otherwise the values are returned in order.
func Collect[T any](results []Result[T]) Result[[]T] {
	vals := make([]T, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			return Err[[]T](r.err)
		}
		vals = append(vals, r.val)
	}
	return Ok(vals)
}
