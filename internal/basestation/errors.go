package basestation

import "errors"

// Domain-specific errors for the engine.
var (
	// ErrNoAdapter is returned by New when no peripheral adapter is given.
	ErrNoAdapter = errors.New("basestation: adapter is required")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("basestation: engine already started")

	// ErrNotStarted is returned by HealthCheck before Start.
	ErrNotStarted = errors.New("basestation: engine not started")

	// ErrScanStart wraps the adapter error when discovery cannot be started.
	ErrScanStart = errors.New("basestation: scan start failed")

	// ErrDeviceNotFound is returned when a command targets an address the
	// store does not know.
	ErrDeviceNotFound = errors.New("basestation: device not found")

	// ErrCharacteristicNotFound is returned by adapters when a device does
	// not expose the power characteristic.
	ErrCharacteristicNotFound = errors.New("basestation: power characteristic not found")

	// ErrInvalidTarget is returned for a power command without a valid target.
	ErrInvalidTarget = errors.New("basestation: invalid power target")

	// ErrUnknownCommand is returned for a command of an unrecognised kind.
	ErrUnknownCommand = errors.New("basestation: unknown command")
)
