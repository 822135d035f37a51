package index

import "errors"

var (
	// ErrIndex indicates a failure in the backing store of the message
	// index.
	ErrIndex = errors.New("index: operation failed")

	// ErrNotSelect indicates a query submitted to the read-only SQL
	// surface that is not a SELECT statement.
	ErrNotSelect = errors.New("index: query is not a select statement")
)
