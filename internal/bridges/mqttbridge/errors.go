package mqttbridge

import "errors"

var (
	// ErrQueueFull is returned by command handlers when the engine rejects
	// a command.
	ErrQueueFull = errors.New("mqttbridge: command queue full")

	// ErrInvalidPayload is returned for a power command that cannot be parsed.
	ErrInvalidPayload = errors.New("mqttbridge: invalid command payload")

	// ErrInvalidTopic is returned for a command on an unrecognised topic.
	ErrInvalidTopic = errors.New("mqttbridge: invalid command topic")
)
