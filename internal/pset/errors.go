package pset

import "errors"

var (
	// ErrUndeclaredField is returned when a mutation addresses a field that
	// does not exist and the caller did not ask for it to be declared.
	ErrUndeclaredField = errors.New("undeclared field")
	// ErrDuplicateField is returned by Declare for a name that already exists.
	ErrDuplicateField = errors.New("duplicate field")
	// ErrKindMismatch is returned when a value cannot be stored in a field of
	// a different kind.
	ErrKindMismatch = errors.New("kind mismatch")
	// ErrNotAVector is returned by vector operations on scalar fields.
	ErrNotAVector = errors.New("field is not a vector")
	// ErrNotAPSet is returned when a path descends through a non-pset field.
	ErrNotAPSet = errors.New("field is not a parameter set")
	// ErrIndexOutOfRange is returned for an index beyond a vector's length.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrInvalidName is returned for names that are not identifiers.
	ErrInvalidName = errors.New("invalid field name")
)
