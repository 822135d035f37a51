// Package dispatch routes decoded messages to the entities they
// describe and into the current-state index.
//
// The dispatcher is a pure policy layer. Per message it validates the
// address triple against the verb, resolves (lazily creating) the
// Device, Zone and System entities implied by the addresses, absorbs
// exact duplicates and correlates array continuations, then hands the
// message to each resolved entity's handler and records it in the
// index.
//
// Entity creation goes through an explicit Registry owned by the
// engine, subject to an allow/block address filter and a discovery
// switch. No global state is involved.
//
// In safe mode (the default) any failure while handling one message is
// logged at warning level with the offending frame and a stack trace,
// and processing continues; strict mode returns the failure to the
// caller. A single bad frame never halts ingestion.
package dispatch
