// Package foundation holds small generic types shared across harvestcycle.
package foundation

import "fmt"

// Option represents a value that may or may not be present.
// Views return it for timestamps that are unset until the first harvest.
type Option[T any] struct {
	value   T
	present bool
}

// Some creates an Option with a value.
func Some[T any](value T) Option[T] {
	return Option[T]{value: value, present: true}
}

// None creates an empty Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// FromPointer returns Some(*ptr) for a non-nil pointer and None otherwise.
func FromPointer[T any](ptr *T) Option[T] {
	if ptr != nil {
		return Some(*ptr)
	}
	return None[T]()
}

// IsSome returns true if the Option contains a value.
func (o Option[T]) IsSome() bool { return o.present }

// IsNone returns true if the Option is empty.
func (o Option[T]) IsNone() bool { return !o.present }

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) { return o.value, o.present }

// Unwrap returns the value if present, panics if None.
// Use this only when you're certain the Option contains a value.
func (o Option[T]) Unwrap() T {
	if !o.present {
		panic("called Unwrap on None option")
	}
	return o.value
}

// UnwrapOr returns the value if present, otherwise returns the fallback.
func (o Option[T]) UnwrapOr(fallback T) T {
	if o.present {
		return o.value
	}
	return fallback
}

// ToPointer returns a pointer to a copy of the value if present, nil if None.
func (o Option[T]) ToPointer() *T {
	if o.present {
		v := o.value
		return &v
	}
	return nil
}

// String provides a string representation of the Option.
func (o Option[T]) String() string {
	if o.present {
		return fmt.Sprintf("Some(%v)", o.value)
	}
	return "None"
}
