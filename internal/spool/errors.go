package spool

import "errors"

var (
	// ErrFull is returned by the bounded ingestion channel when the
	// capture path must drop a representation rather than block
	// (spec.md §4.9 backpressure model).
	ErrFull = errors.New("spool: queue full")
	// ErrBudgetExceeded is returned when writing bytes to disk would
	// exceed the spool directory's byte budget.
	ErrBudgetExceeded = errors.New("spool: byte budget exceeded")
	ErrNotFound       = errors.New("spool: entry not found")
	ErrIoFailure      = errors.New("spool: io failure")
)
