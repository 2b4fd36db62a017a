package remote

import "errors"

var (
	ErrZoneNotFound    = errors.New("zone not found")
	ErrTokenExpired    = errors.New("change token expired")
	ErrAssetNotFound   = errors.New("asset not found")
	ErrBadToken        = errors.New("malformed change token")
	ErrExecutingQuery  = errors.New("error executing query")
	ErrBeginningTx     = errors.New("error beginning transaction")
	ErrScanningRow     = errors.New("error scanning row")
	ErrEncodingPayload = errors.New("error encoding payload")
)
