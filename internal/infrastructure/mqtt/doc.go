// Package mqtt provides MQTT client connectivity for the lighthouse service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after reconnect
//   - Last Will and Testament on <prefix>/status for offline detection
//
// Home automation systems use the broker to watch base station power
// states and to put the whole play space to sleep without touching the
// headset:
//
//	lighthouse service ↔ MQTT broker ↔ Home Assistant, Node-RED, scripts
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishRetained(client.Topics().DeviceState(addr), payload)
//
// TLS should be enabled (cfg.Broker.TLS) whenever the broker is not on
// the local host.
package mqtt
