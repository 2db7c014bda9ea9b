package power

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CharacteristicUUID is the GATT characteristic that carries the power state
// byte on SteamVR 2.0 base stations.
var CharacteristicUUID = uuid.MustParse("00001525-1212-efde-1523-785feabcd124")

// State is the observed power state of a base station.
type State string

// Observed power states.
const (
	StateOn       State = "on"
	StateStandby  State = "standby"
	StateSleep    State = "sleep"
	StateStarting State = "starting"
	StateUnknown  State = "unknown"
)

// Telemetry bytes reported by the power characteristic.
const (
	byteSleep    = 0x00
	byteOn       = 0x01
	byteStandby  = 0x02
	byteStarting = 0x09
	byteOnAlt    = 0x0B
)

// ErrUnknownTarget is returned when a target name cannot be parsed.
var ErrUnknownTarget = errors.New("power: unknown target")

// Decode maps a telemetry payload to a State. Payloads that are not exactly
// one recognised byte decode to StateUnknown.
func Decode(payload []byte) State {
	if len(payload) != 1 {
		return StateUnknown
	}
	switch payload[0] {
	case byteSleep:
		return StateSleep
	case byteOn, byteOnAlt:
		return StateOn
	case byteStandby:
		return StateStandby
	case byteStarting:
		return StateStarting
	default:
		return StateUnknown
	}
}

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// Label returns a human readable label for display.
func (s State) Label() string {
	switch s {
	case StateOn:
		return "On"
	case StateStandby:
		return "Standby"
	case StateSleep:
		return "Sleep"
	case StateStarting:
		return "Starting"
	default:
		return "Unknown"
	}
}

// Known reports whether the state carries information, i.e. it is not
// StateUnknown.
func (s State) Known() bool {
	return s != StateUnknown && s != ""
}

// Allows reports whether switching a device in state s to target t is a
// meaningful action. Nothing is allowed while the state is unknown, and a
// device cannot be switched into the state it is already in. Turning a
// device on is only offered from sleep or standby.
func (s State) Allows(t Target) bool {
	switch t {
	case TargetStandby:
		return s != StateStandby && s.Known()
	case TargetSleep:
		return s != StateSleep && s.Known()
	case TargetOn:
		return s == StateSleep || s == StateStandby
	default:
		return false
	}
}

// Target is a power state a base station can be commanded into.
type Target string

// Controllable targets.
const (
	TargetOn      Target = "on"
	TargetStandby Target = "standby"
	TargetSleep   Target = "sleep"
)

// Targets lists every controllable target.
func Targets() []Target {
	return []Target{TargetOn, TargetStandby, TargetSleep}
}

// ParseTarget parses a target name. Matching is case-insensitive and accepts
// "stand by" and "stand-by" for standby.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on":
		return TargetOn, nil
	case "standby", "stand by", "stand-by":
		return TargetStandby, nil
	case "sleep", "off":
		return TargetSleep, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTarget, s)
	}
}

// Valid reports whether t is one of the controllable targets.
func (t Target) Valid() bool {
	switch t {
	case TargetOn, TargetStandby, TargetSleep:
		return true
	default:
		return false
	}
}

// Byte returns the wire encoding of the target. Invalid targets encode as
// the sleep byte; callers validate with Valid or ParseTarget first.
func (t Target) Byte() byte {
	switch t {
	case TargetOn:
		return byteOn
	case TargetStandby:
		return byteStandby
	default:
		return byteSleep
	}
}

// State returns the observed state a device reports once it has settled in
// the target.
func (t Target) State() State {
	switch t {
	case TargetOn:
		return StateOn
	case TargetStandby:
		return StateStandby
	case TargetSleep:
		return StateSleep
	default:
		return StateUnknown
	}
}

// Pending returns the state a front end shows right after issuing the
// command, before telemetry confirms it. A device that is switched on goes
// through Starting first.
func (t Target) Pending() State {
	if t == TargetOn {
		return StateStarting
	}
	return t.State()
}

// String returns the target name.
func (t Target) String() string {
	return string(t)
}
