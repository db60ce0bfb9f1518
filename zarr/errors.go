package zarr

import "errors"

// Sentinel errors returned (wrapped) by the package. Callers match with
// errors.Is; underlying storage failures propagate with their own wrapping.
var (
	// ErrSchema reports an invalid or corrupt dtype descriptor or metadata
	// document.
	ErrSchema = errors.New("invalid schema")

	// ErrAlreadyExists is returned by Create when the target already holds
	// an array.
	ErrAlreadyExists = errors.New("array already exists")

	// ErrNotFound is returned when an array or chunk does not exist.
	ErrNotFound = errors.New("not found")

	// ErrOutOfBounds reports a region that falls outside the array shape.
	ErrOutOfBounds = errors.New("region out of bounds")

	// ErrCorruptChunk reports a chunk whose byte length does not match the
	// chunk shape and item size.
	ErrCorruptChunk = errors.New("corrupt chunk")

	// ErrShrinkNotSupported is returned by Resize when any dimension of the
	// requested shape is smaller than the current one.
	ErrShrinkNotSupported = errors.New("shrink not supported")
)
