// Package errors provides the classified error primitives used across harvestcycle.
//
// Every failure the state store reports is a ClassifiedError carrying a category
// (load, validation, persist, integrity, ...), a severity and a retry strategy, so
// callers can tell a caller bug from a transient I/O failure without string matching.
//
// Example usage:
//
//	err := errors.PersistError("failed to write overview").
//		WithCause(ioErr).
//		WithContext("path", path).
//		Build()
package errors
