// Package process holds the assembled configuration of one job: named
// modules, named parameter sets, sequences, paths and end paths sharing a
// single label namespace, plus the source, services, options and event
// limit.
//
// A Process is built by an ordered series of statements. Load imports another
// process's entries by reference, so a module mutated through either process
// is the same object. Finalize validates the whole graph and produces a Plan,
// the linearized schedule handed to the execution engine.
package process
