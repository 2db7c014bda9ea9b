package influxdb

import (
	"time"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

// PointWriter is implemented by *Client.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time)
}

// Recorder turns engine notifications into time-series points. It
// implements basestation.Observer.
type Recorder struct {
	writer PointWriter
}

// NewRecorder returns a Recorder writing through w.
func NewRecorder(w PointWriter) *Recorder {
	return &Recorder{writer: w}
}

// Notify implements basestation.Observer.
func (r *Recorder) Notify(n basestation.Notification) {
	measurement, tags, fields, ok := pointFor(n)
	if !ok {
		return
	}
	ts := n.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	r.writer.WritePointWithTime(measurement, tags, fields, ts)
}

// pointFor maps a notification to a point. Discovery and rename events are
// not recorded.
func pointFor(n basestation.Notification) (string, map[string]string, map[string]any, bool) {
	switch n.Type {
	case basestation.EventPowerStateChanged:
		return MeasurementPowerState,
			map[string]string{"address": n.Address},
			map[string]any{
				"state":    string(n.State),
				"previous": string(n.Previous),
				"level":    PowerLevel(n.State),
			}, true

	case basestation.EventScanStarted, basestation.EventScanFailed, basestation.EventScanFinished:
		fields := map[string]any{"count": 1}
		if n.Error != "" {
			fields["error"] = n.Error
		}
		return MeasurementScan, map[string]string{"event": string(n.Type)}, fields, true

	case basestation.EventCommandExecuted:
		if n.Command == nil {
			return "", nil, nil, false
		}
		tags := map[string]string{
			"kind":    string(n.Command.Kind),
			"outcome": string(n.Outcome),
		}
		if n.Command.Source != "" {
			tags["source"] = n.Command.Source
		}
		fields := map[string]any{"count": 1}
		if n.Command.Address != "" {
			fields["address"] = n.Command.Address
		}
		if n.Command.Target != "" {
			fields["target"] = string(n.Command.Target)
		}
		return MeasurementCommand, tags, fields, true
	}
	return "", nil, nil, false
}

// PowerLevel maps a power state to an ordinal suitable for graphing:
// sleep 0, standby 1, starting 2, on 3. Unknown states are -1.
func PowerLevel(s power.State) int {
	switch s {
	case power.StateSleep:
		return 0
	case power.StateStandby:
		return 1
	case power.StateStarting:
		return 2
	case power.StateOn:
		return 3
	default:
		return -1
	}
}
