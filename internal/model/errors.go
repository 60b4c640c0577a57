package model

import "errors"

var (
	// ErrNotFound is returned when a single-row read targets a missing row.
	// Empty result sets from list/search reads are not errors.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on unique-constraint violations, e.g. a
	// duplicate (conversation, turn number) pair or a duplicate session id.
	ErrConflict = errors.New("conflict")

	// ErrForeignKey is returned when a write references a parent row that
	// does not exist, e.g. appending a turn to an unknown conversation.
	ErrForeignKey = errors.New("referenced row not found")

	// ErrValidation is returned for malformed caller input.
	ErrValidation = errors.New("validation error")

	// ErrDimensionMismatch is returned when an embedding has the wrong
	// width for its space. The store is never touched in that case.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
