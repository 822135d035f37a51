package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/calorhome/ramses-core/internal/infrastructure/mqtt"
)

// Broker is the slice of the MQTT client the bridge needs. Satisfied
// by *mqtt.Client.
type Broker interface {
	PublishString(topic string, payload string, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.Handler) error
	Unsubscribe(topic string) error
}

// MQTTBridge relays frames to and from a remote dongle exposed over an
// MQTT broker (rx topic carries inbound frames, tx topic outbound).
type MQTTBridge struct {
	*base
	broker  Broker
	rxTopic string
	txTopic string
}

// NewMQTTBridge subscribes to the rx topic and starts the write pump.
func NewMQTTBridge(broker Broker, rxTopic, txTopic string, protocol Protocol, logger Logger, opts Options) (*MQTTBridge, error) {
	m := &MQTTBridge{
		broker:  broker,
		rxTopic: rxTopic,
		txTopic: txTopic,
	}
	m.base = newBase(protocol, logger, opts, m.publish)
	protocol.ConnectionMade(m)
	m.start()

	err := broker.Subscribe(rxTopic, 1, func(_ string, payload []byte) error {
		ts := time.Now()
		// Remote bridges may batch several frames per publish.
		for _, line := range strings.Split(string(payload), "\n") {
			m.deliver(line, ts)
		}
		return nil
	})
	if err != nil {
		m.close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrTransport, rxTopic, err)
	}

	logger.Debug("mqtt bridge open", "rx_topic", rxTopic, "tx_topic", txTopic)
	return m, nil
}

func (m *MQTTBridge) publish(frame string) error {
	if err := m.broker.PublishString(m.txTopic, frame, 1, false); err != nil {
		return fmt.Errorf("publish %s: %w", m.txTopic, err)
	}
	return nil
}

// Close unsubscribes from the rx topic and stops the write pump.
func (m *MQTTBridge) Close() error {
	m.close()
	if err := m.broker.Unsubscribe(m.rxTopic); err != nil {
		return fmt.Errorf("%w: unsubscribe: %v", ErrTransport, err)
	}
	return nil
}
