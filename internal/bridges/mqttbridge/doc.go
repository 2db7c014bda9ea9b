// Package mqttbridge exposes the base station engine on the MQTT bus.
//
// Outbound, every device is published as a retained JSON document on
// <prefix>/state/<address> whenever it is discovered, renamed or changes
// power state, and every engine notification is forwarded to
// <prefix>/event/<type>.
//
// Inbound, the bridge subscribes to:
//
//	<prefix>/command/scan               any payload restarts discovery
//	<prefix>/command/<address>/power    {"state":"sleep"} or a bare "sleep"
//
// Commands are queued on the engine exactly like commands from the
// terminal or HTTP front ends. Results arrive later as command_executed
// events.
package mqttbridge
