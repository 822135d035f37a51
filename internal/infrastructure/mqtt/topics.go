package mqtt

import "fmt"

// Topic prefixes for the Calor Home MQTT namespace.
//
// The gateway bridge uses the flat scheme: ramses/gateway/{direction}
// where direction is rx (frames arriving off-air at the remote gateway)
// or tx (frames for the remote gateway to transmit).
const (
	// TopicPrefix is the base for all Calor Home topics.
	TopicPrefix = "ramses"

	// TopicPrefixGateway is the base for remote-gateway bridge topics.
	TopicPrefixGateway = "ramses/gateway"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "ramses/system"
)

// Topics provides builders for Calor Home MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	rxTopic := topics.GatewayRx()
//	// Returns: "ramses/gateway/rx"
type Topics struct{}

// GatewayRx returns the topic carrying raw frames received by the
// remote gateway. One frame per message; batched frames are
// newline-separated.
//
// Example: ramses/gateway/rx
func (Topics) GatewayRx() string {
	return fmt.Sprintf("%s/rx", TopicPrefixGateway)
}

// GatewayTx returns the topic the remote gateway consumes for frames
// to transmit on-air.
//
// Example: ramses/gateway/tx
func (Topics) GatewayTx() string {
	return fmt.Sprintf("%s/tx", TopicPrefixGateway)
}

// SystemStatus returns the daemon status topic. Carries the retained
// online/offline payloads and the Last Will message.
//
// Example: ramses/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllGateway returns a pattern matching both gateway directions.
//
// Pattern: ramses/gateway/+
func (Topics) AllGateway() string {
	return fmt.Sprintf("%s/+", TopicPrefixGateway)
}

// AllTopics returns a pattern matching all Calor Home topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: ramses/#
func (Topics) AllTopics() string {
	return "ramses/#"
}
