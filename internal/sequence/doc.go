// Package sequence implements the composition graph of a process: ordered
// expressions over module and sequence labels that define execution order.
//
// Two operators combine references. `a * b` is the sequential AND: b runs
// after a and both must pass. `a + b` means "also run" b. Both operators
// linearize into one ordered list, left to right, and references to other
// sequences are expanded by label at linearization time, so a sequence shared
// by several paths is shared by reference. A reference may be inverted with
// `!label`, which is only meaningful for filters.
//
// Expressions use the arithmetic syntax of HCL and are parsed from HCL
// expression trees without evaluating them.
package sequence
