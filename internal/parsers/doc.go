// Package parsers holds the payload parsers for the protocol codes the
// core ships with: heating (CH/DHW controller families) and ventilation
// (HRU/PIV/EXT fan families) plus the sensors that feed them.
//
// Each parser turns a decoded payload into semantic fields. An absent
// reading (a sensor slot reporting the fill value) becomes a nil field
// value, never an error; errors are reserved for payloads that violate
// the code's record layout.
//
// Default returns a registry populated with the full set. Device-type
// modules outside the core register their own codes on top.
package parsers
