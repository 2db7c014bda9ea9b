package bluez

import "errors"

var (
	// ErrBlueZUnavailable is returned when org.bluez is not on the system bus.
	ErrBlueZUnavailable = errors.New("bluez: org.bluez not found on system bus, is bluetooth.service running?")

	// ErrAdapterNotFound is returned when the configured controller does not exist.
	ErrAdapterNotFound = errors.New("bluez: adapter not found")
)
