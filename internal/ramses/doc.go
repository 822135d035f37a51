// Package ramses implements the RAMSES-II wire grammar for Calor Home Core.
//
// RAMSES-II is the fixed-width text protocol spoken by Honeywell-style
// heating and ventilation controllers over an 868 MHz radio. A serial
// dongle (or a replay log, or an MQTT bridge) presents the radio traffic
// one frame per line:
//
//	RSSI VERB --- SRC DST ADDR3 CODE LEN PAYLOAD [< hint] [* error] [# comment]
//
// Example:
//
//	045  I --- 01:145038 --:------ 01:145038 1F09 003 FF073F
//
// # Key Responsibilities
//
//   - Parse raw wire lines into validated Packet values
//   - Build and serialize outbound Command frames
//   - Validate the 9-character device address grammar (TT:NNNNNN)
//
// The codec is pure and stateless: parsing either yields a fully valid
// Packet or fails with ErrPacketInvalid — never a wrong-but-valid value.
//
// # Thread Safety
//
// Packet, Command, Address and Verb are immutable value types and safe to
// share between goroutines.
package ramses
