package model

import "errors"

var (
	// ErrNotFound is returned when a guild, member, or open stint does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed input: bad timestamps, unknown
	// event kinds, queries below the minimum length.
	ErrValidation = errors.New("validation error")
	// ErrConsistency signals an event that contradicts ledger state, such as a
	// join while a stint is still open. Recoverable; callers log and drop.
	ErrConsistency = errors.New("consistency error")
	// ErrIndexSync signals that a search record could not be derived or
	// persisted for a pair. The pair must be reindexed, never ignored.
	ErrIndexSync = errors.New("index sync error")
)
