package process

import "errors"

var (
	// ErrDuplicateLabel is returned when a label is declared twice.
	ErrDuplicateLabel = errors.New("duplicate label")
	// ErrUnknownLabel is returned when a label does not resolve.
	ErrUnknownLabel = errors.New("unknown label")
	// ErrInvalidLabel is returned for labels that are not identifiers or are reserved.
	ErrInvalidLabel = errors.New("invalid label")
	// ErrNotSchedulable is returned when a label cannot appear where it is scheduled.
	ErrNotSchedulable = errors.New("not schedulable")
	// ErrInvalidInversion is returned when `!` is applied to anything but a filter.
	ErrInvalidInversion = errors.New("invalid inversion")
	// ErrCycle is returned for sequence nesting and InputTag consumption cycles.
	ErrCycle = errors.New("cycle")
	// ErrNoSource is returned when a process is finalized without a source.
	ErrNoSource = errors.New("process has no source")
	// ErrWrongRole is returned when a module is declared through the wrong call for its role.
	ErrWrongRole = errors.New("wrong module role")
)
