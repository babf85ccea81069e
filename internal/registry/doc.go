// Package registry is the catalog of module type descriptions.
//
// A description states which role a module type plays and which parameters it
// accepts, with their kind, optionality and default. Configurations register
// descriptions with `describe` blocks. When the process is finalized, every
// module whose type is described is validated against it and missing
// defaults are inserted. Types without a description are treated as opaque
// and pass unchecked.
package registry
