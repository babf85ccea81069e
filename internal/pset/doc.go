// Package pset implements the parameter set: an ordered, nested mapping from
// field names to typed values that configures every module of a process and
// doubles as a standalone data container.
//
// Values carry an explicit Kind (bool, int32, uint32, int64, uint64, double,
// string, InputTag or nested parameter set), may be vectors of that kind, and
// are either tracked (part of the job's provenance) or untracked.
//
// Nested parameter sets are copied when they are inserted, so the structure is
// always a tree. Clone never mutates its receiver. Mutating an undeclared
// field fails with ErrUndeclaredField unless the caller explicitly asks for the
// field to be declared.
package pset
