// Package message wraps validated RAMSES-II packets with their semantic
// layer for Calor Home Core.
//
// A Message adds three things to a Packet:
//
//   - a lazily-decoded payload (Fields), produced by a per-code parser
//     looked up in an explicit Registry — unknown codes decode to an
//     empty payload (protocol forward-compatibility), and a parser
//     failure yields {"_error": <text>} without aborting construction
//   - a correlation header "src|dst|verb|code|ctx" identifying the
//     logical slot the message occupies
//   - a context key (ctx) disambiguating concurrent slots under one
//     code (zone index, domain id, fault-log entry)
//
// Multi-record broadcasts (zone temperature/setpoint/config arrays) are
// flagged via HasArray, and DetectArrayFragment correlates fragments of
// one logical array by timing proximity and index continuation.
//
// # Thread Safety
//
// Messages are immutable after construction; the lazy payload decode is
// guarded by sync.Once. Registry is safe for concurrent use.
package message
