package basestation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

// Device is the observed state of one base station.
type Device struct {
	Address    string      `json:"address"`
	Name       string      `json:"name,omitempty"`
	PowerState power.State `json:"power_state"`
}

// DisplayName returns the device name, falling back to its address.
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Address
}

// ErrorKind is the value held in the store's single error slot.
type ErrorKind string

// Error kinds.
const (
	ErrorNone        ErrorKind = ""
	ErrorStartFailed ErrorKind = "start_failed"
)

// Message returns operator-facing text for the error.
func (k ErrorKind) Message() string {
	switch k {
	case ErrorStartFailed:
		return "Scan failed. Is bluetooth enabled?"
	default:
		return ""
	}
}

// Snapshot is a point-in-time copy of the store. Devices are sorted by
// address. Mutating a Snapshot never affects the store.
type Snapshot struct {
	Devices  []Device  `json:"devices"`
	Scanning bool      `json:"scanning"`
	Error    ErrorKind `json:"error,omitempty"`
}

// Headline returns the one-line status shown above the device list.
func (s Snapshot) Headline() string {
	switch {
	case s.Error != ErrorNone:
		return s.Error.Message()
	case s.Scanning:
		return "Scanning for base stations"
	default:
		return fmt.Sprintf("Found %d devices", len(s.Devices))
	}
}

// Device returns the device with the given address.
func (s Snapshot) Device(address string) (Device, bool) {
	for _, d := range s.Devices {
		if d.Address == address {
			return d, true
		}
	}
	return Device{}, false
}

// CommandKind identifies a command type.
type CommandKind string

// Command kinds.
const (
	CommandRestartScan      CommandKind = "restart_scan"
	CommandChangePowerState CommandKind = "change_power_state"
)

// Command is an operator request executed by the Dispatcher.
type Command struct {
	ID       string       `json:"id"`
	Kind     CommandKind  `json:"kind"`
	Address  string       `json:"address,omitempty"`
	Target   power.Target `json:"target,omitempty"`
	Source   string       `json:"source,omitempty"`
	IssuedAt time.Time    `json:"issued_at"`
}

// RestartScan returns a command that clears the store and restarts discovery.
func RestartScan() Command {
	return Command{Kind: CommandRestartScan}
}

// ChangePowerState returns a command that writes target to the device at
// address.
func ChangePowerState(address string, target power.Target) Command {
	return Command{Kind: CommandChangePowerState, Address: address, Target: target}
}

// WithSource returns a copy of c tagged with the subsystem that issued it.
func (c Command) WithSource(source string) Command {
	c.Source = source
	return c
}

// NewCommandID generates a short command identifier. Front ends that need
// to report the id before the command runs assign it themselves.
func NewCommandID() string {
	return "cmd-" + uuid.NewString()[:8]
}

// EventType identifies a Notification.
type EventType string

// Notification types.
const (
	EventDeviceDiscovered  EventType = "device_discovered"
	EventDeviceRenamed     EventType = "device_renamed"
	EventPowerStateChanged EventType = "power_state_changed"
	EventScanStarted       EventType = "scan_started"
	EventScanFailed        EventType = "scan_failed"
	EventScanFinished      EventType = "scan_finished"
	EventCommandExecuted   EventType = "command_executed"
)

// Outcome describes how a command ended.
type Outcome string

// Command outcomes.
const (
	OutcomeOK      Outcome = "ok"
	OutcomeDropped Outcome = "dropped"
	OutcomeFailed  Outcome = "failed"
)

// Notification describes a change made by one of the engine's activities.
// Only the fields relevant to Type are set.
type Notification struct {
	Type      EventType   `json:"type"`
	Address   string      `json:"address,omitempty"`
	Name      string      `json:"name,omitempty"`
	State     power.State `json:"state,omitempty"`
	Previous  power.State `json:"previous,omitempty"`
	Command   *Command    `json:"command,omitempty"`
	Outcome   Outcome     `json:"outcome,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Observer receives engine notifications. Notify is called from a single
// delivery goroutine and must not block for long.
type Observer interface {
	Notify(n Notification)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(n Notification)

// Notify implements Observer.
func (f ObserverFunc) Notify(n Notification) {
	f(n)
}
