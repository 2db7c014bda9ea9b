package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when mqtt.topic_prefix is empty.
const DefaultTopicPrefix = "lighthouse"

// Topics builds the service's MQTT topic hierarchy under a single prefix:
//
//	<prefix>/status                  retained online/offline, also the LWT
//	<prefix>/state/<address>         retained device snapshot
//	<prefix>/event/<type>            engine notifications
//	<prefix>/command/scan            restart discovery
//	<prefix>/command/<address>/power change power state
//
// Addresses are used verbatim. BLE addresses contain colons, which are
// legal in MQTT topic levels.
type Topics struct {
	Prefix string
}

// NewTopics returns a Topics builder, substituting DefaultTopicPrefix for an
// empty prefix and trimming trailing separators.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Status returns the service status topic.
//
// Example: lighthouse/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/status", t.prefix())
}

// DeviceState returns the retained state topic for one base station.
//
// Example: lighthouse/state/AA:BB:CC:DD:EE:01
func (t Topics) DeviceState(address string) string {
	return fmt.Sprintf("%s/state/%s", t.prefix(), address)
}

// Event returns the topic for an engine notification type.
//
// Example: lighthouse/event/power_state_changed
func (t Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", t.prefix(), eventType)
}

// ScanCommand returns the topic that requests a discovery restart.
func (t Topics) ScanCommand() string {
	return fmt.Sprintf("%s/command/scan", t.prefix())
}

// PowerCommand returns the topic that requests a power state change.
//
// Example: lighthouse/command/AA:BB:CC:DD:EE:01/power
func (t Topics) PowerCommand(address string) string {
	return fmt.Sprintf("%s/command/%s/power", t.prefix(), address)
}

// AllPowerCommands matches every power command topic.
//
// Pattern: lighthouse/command/+/power
func (t Topics) AllPowerCommands() string {
	return fmt.Sprintf("%s/command/+/power", t.prefix())
}

// AllTopics matches everything under the prefix.
//
// Pattern: lighthouse/#
func (t Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", t.prefix())
}

// ParsePowerCommand extracts the device address from a power command topic.
func (t Topics) ParsePowerCommand(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/command/")
	if !ok {
		return "", false
	}
	address, ok := strings.CutSuffix(rest, "/power")
	if !ok || address == "" || strings.Contains(address, "/") {
		return "", false
	}
	return address, true
}
