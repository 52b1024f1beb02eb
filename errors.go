package qchain

import "errors"

/*
Error classes returned by qchain. Every error produced by the package wraps exactly
one of these, so callers can branch on the class with errors.Is without parsing
messages.
*/
var (
	// ErrValidation covers bad chain lengths, malformed patterns, out-of-range
	// indices, invalid projection values and incompatible subspace pairings.
	ErrValidation = errors.New("validation error")

	// ErrType is returned when a scale operand is not a scalar.
	ErrType = errors.New("type error")

	// ErrUninitialized is returned by data operations on a State that was never written.
	ErrUninitialized = errors.New("state is uninitialized")

	// ErrFormat is returned for corrupt or incompatible save files.
	ErrFormat = errors.New("format error")

	// ErrAborted is returned by a collective when the group was cancelled.
	ErrAborted = errors.New("collective aborted")
)
