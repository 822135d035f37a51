package message

import "github.com/calorhome/ramses-core/internal/ramses"

// Domain ids occupy the top of the index byte range; anything below is a
// zone index.
const domainIDFloor = 0xF8

// zoneIndexedCodes are codes whose first payload byte is a zone or
// instance index used as the context key.
var zoneIndexedCodes = map[string]bool{
	"0004": true,
	"000A": true,
	"0008": true,
	"0009": true,
	"1060": true,
	"1100": true,
	"1298": true,
	"12A0": true,
	"12B0": true,
	"2309": true,
	"2349": true,
	"30C9": true,
	"3150": true,
	"31D9": true,
	"31DA": true,
}

// contextKey derives the ctx component of a message header.
//
// Most codes address a zone, domain or instance through their first
// payload byte; fault-log reads (0418) carry the entry index at byte 2.
// System-wide codes have an empty ctx. Array broadcasts take the index
// of their first record, so consecutive fragments land in distinct
// slots.
func contextKey(pkt ramses.Packet) string {
	switch {
	case pkt.Code == "0418" && len(pkt.Payload) >= 6:
		return pkt.Payload[4:6]
	case zoneIndexedCodes[pkt.Code] && len(pkt.Payload) >= 2:
		return pkt.Payload[0:2]
	default:
		return ""
	}
}

// arrayRecordSize maps codes that the controller broadcasts as
// multi-record arrays to their per-record payload width in bytes.
var arrayRecordSize = map[string]int{
	"30C9": 3,
	"2309": 3,
	"000A": 6,
}

// isArray reports whether a packet is a multi-record array broadcast:
// an I-verb frame on an array-capable code carrying more than one
// record.
func isArray(pkt ramses.Packet) bool {
	size, ok := arrayRecordSize[pkt.Code]
	if !ok || pkt.Verb != ramses.VerbI {
		return false
	}
	return pkt.Len > size && pkt.Len%size == 0
}
