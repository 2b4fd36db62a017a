package store

import "errors"

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrOpeningDB      = errors.New("error opening database")
	ErrBeginningTx    = errors.New("error beginning transaction")
	ErrExecutingQuery = errors.New("error executing query")
	ErrScanningRow    = errors.New("error scanning row")
	ErrScanningRows   = errors.New("error during rows iteration")
	ErrEncodingValue  = errors.New("error encoding stored value")
	ErrDecodingValue  = errors.New("error decoding stored value")
)
