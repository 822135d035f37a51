// Package index maintains the current-state view of the RAMSES-II
// network: at most one message per logical slot (header), queryable
// with SQL.
//
// The index pairs an in-memory SQLite database holding one row of
// message metadata per slot with a Go map holding the message values
// themselves, joined on the nanosecond timestamp key. Adding a message
// whose header is already present evicts the older occupant and returns
// it, so callers can compare old against new for duplicate and change
// detection.
//
// The SQL surface is read-only by contract: Qry and QryField accept
// SELECT statements only. Writes go through Add and Clr.
//
// # Thread Safety
//
// All methods are safe for concurrent use; a single mutex serialises
// access to the map and the database.
package index
