package mqttbridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

// StateMessage is the retained document on <prefix>/state/<address>.
type StateMessage struct {
	Address   string      `json:"address"`
	Name      string      `json:"name"`
	State     power.State `json:"state"`
	Label     string      `json:"label"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewStateMessage builds the retained state document for d.
func NewStateMessage(d basestation.Device) StateMessage {
	return StateMessage{
		Address:   d.Address,
		Name:      d.DisplayName(),
		State:     d.PowerState,
		Label:     d.PowerState.Label(),
		Timestamp: time.Now().UTC(),
	}
}

// PowerCommandMessage is the JSON form of a power command payload.
type PowerCommandMessage struct {
	State string `json:"state"`
	// ID is echoed back on the command_executed event when set.
	ID string `json:"id,omitempty"`
}

// parsePowerCommand accepts either a PowerCommandMessage or a bare target
// name such as "sleep".
func parsePowerCommand(payload []byte) (power.Target, string, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return "", "", fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	raw, id := string(trimmed), ""
	if trimmed[0] == '{' {
		var msg PowerCommandMessage
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return "", "", fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		raw, id = msg.State, msg.ID
	}

	target, err := power.ParseTarget(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return target, id, nil
}
