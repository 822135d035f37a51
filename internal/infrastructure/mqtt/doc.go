// Package mqtt is the broker client behind the MQTT-bridged transport:
// frames received off-air by a remote RF gateway arrive on
// ramses/gateway/rx, and outbound frames go to ramses/gateway/tx for
// the remote dongle to transmit.
//
// The client keeps a retained online/offline record on
// ramses/system/status, backed by a Last Will so the broker announces a
// crash, and replays its subscriptions after paho's auto-reconnect.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.GatewayRx(), 1,
//	    func(topic string, payload []byte) error {
//	        return engine.Feed(payload)
//	    })
package mqtt
