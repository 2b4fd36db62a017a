package mapper

import "errors"

var (
	// ErrMissingRelatedObject signals that an inbound record references an
	// object that does not exist locally yet. Callers defer the record and
	// retry after the rest of the batch has been applied; the error is
	// never swallowed because it indicates a dependency-ordering problem.
	ErrMissingRelatedObject = errors.New("missing related object")

	// ErrInvalidRecord signals a record that fails schema validation
	// (unknown entity type or absent required field). The single record is
	// skipped with a warning; the batch proceeds.
	ErrInvalidRecord = errors.New("invalid record")

	ErrUnknownEntity       = errors.New("unknown entity type")
	ErrInvalidSystemFields = errors.New("invalid encoded system fields")
	ErrInvalidAttribute    = errors.New("invalid attribute value")
)
