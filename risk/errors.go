package risk

import "errors"

var (
	// ErrInvalidInput covers non-positive prices or quantities, leverage
	// outside the allowed range and a missing limit price.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientBalance means the order's total cost exceeds the
	// available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrStaleTick marks a price update older than one already applied.
	ErrStaleTick = errors.New("stale tick")

	// ErrPersistenceCorrupt marks malformed persisted configuration.
	ErrPersistenceCorrupt = errors.New("persisted data corrupt")
)
