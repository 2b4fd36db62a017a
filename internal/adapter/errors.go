package adapter

import "errors"

var (
	ErrUnauthorized = errors.New("client unauthorized")

	// ErrConflict signals a request-level version conflict. Record-level
	// conflicts travel in ModifyRecordsResponse instead; this sentinel
	// covers endpoints without per-record granularity.
	ErrConflict = errors.New("version conflict")
	ErrZoneNotFound  = errors.New("zone not found")
	ErrTokenExpired  = errors.New("change token expired")
	ErrBatchTooLarge = errors.New("batch exceeds server item ceiling")
	ErrUnavailable   = errors.New("remote service unavailable")
)
