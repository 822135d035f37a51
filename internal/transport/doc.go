// Package transport moves wire frames between a frame source/sink and
// the decode pipeline.
//
// Four variants share one contract: a serial port speaking to an
// evofw3-style USB dongle, a packet-log replay for offline runs, an
// MQTT bridge for remote dongles, and an in-process loopback for
// tests. The owning Protocol receives ConnectionMade exactly once per
// transport before any frame exchange (and must tolerate repeats),
// then LineReceived per inbound frame, then ConnectionLost when the
// source ends or fails.
//
// Inbound flow is gated by a circuit breaker: transports construct
// paused unless the autostart option is set, and frames arriving while
// paused are discarded at the source, never buffered. Outbound frames
// funnel through a single ordered queue with a minimum gap between
// writes, honouring the radio duty-cycle limit without reordering.
//
// The first frame whose source is a type-18 device reveals the local
// gateway identity, exposed via ExtraInfo("gateway_id").
package transport
