/*
Package fieldpath provides a structured representation for addressing a
field inside nested parameter sets.

The canonical format is a dot-separated sequence of segments, where a segment
may carry an index into a vector of parameter sets, e.g. `cuts.jets[1].ptMin`.

This package enforces the path schema and centralizes all formatting and
parsing logic.
*/
package fieldpath
