package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

// commandSource tags commands issued through the HTTP API.
const commandSource = "api"

// deviceResponse is one base station as served by the API.
type deviceResponse struct {
	Address     string          `json:"address"`
	Name        string          `json:"name,omitempty"`
	DisplayName string          `json:"display_name"`
	PowerState  power.State     `json:"power_state"`
	Label       string          `json:"label"`
	Actions     map[string]bool `json:"actions"`
}

func newDeviceResponse(d basestation.Device) deviceResponse {
	actions := make(map[string]bool, len(power.Targets()))
	for _, t := range power.Targets() {
		actions[string(t)] = d.PowerState.Allows(t)
	}
	return deviceResponse{
		Address:     d.Address,
		Name:        d.Name,
		DisplayName: d.DisplayName(),
		PowerState:  d.PowerState,
		Label:       d.PowerState.Label(),
		Actions:     actions,
	}
}

// statusResponse is the full engine snapshot as served by /status and the
// snapshot WebSocket channel.
type statusResponse struct {
	Headline string                `json:"headline"`
	Scanning bool                  `json:"scanning"`
	Error    basestation.ErrorKind `json:"error,omitempty"`
	Devices  []deviceResponse      `json:"devices"`
	Count    int                   `json:"count"`
}

func newStatusResponse(snap basestation.Snapshot) statusResponse {
	devices := make([]deviceResponse, 0, len(snap.Devices))
	for _, d := range snap.Devices {
		devices = append(devices, newDeviceResponse(d))
	}
	return statusResponse{
		Headline: snap.Headline(),
		Scanning: snap.Scanning,
		Error:    snap.Error,
		Devices:  devices,
		Count:    len(devices),
	}
}

// PowerRequest is the body of PUT /devices/{address}/power.
type PowerRequest struct {
	State string `json:"state"`

	// Force skips the action availability check. The device still decides
	// what to do with the write.
	Force bool `json:"force,omitempty"`
}

// commandAccepted is the 202 body for enqueued commands.
type commandAccepted struct {
	Status  string              `json:"status"`
	Command basestation.Command `json:"command"`
}

// handleStatus returns the headline, scan flag, error and devices.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newStatusResponse(s.engine.Snapshot()))
}

// handleListDevices returns every known base station, sorted by address.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	snap := newStatusResponse(s.engine.Snapshot())
	writeJSON(w, http.StatusOK, map[string]any{"devices": snap.Devices, "count": snap.Count})
}

// handleGetDevice returns a single base station.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	dev, ok := s.engine.Snapshot().Device(address)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, newDeviceResponse(dev))
}

// handleSetPower enqueues a ChangePowerState command.
// This is an asynchronous operation: the response is 202 Accepted with the
// command id, and the outcome arrives as a command_executed event.
func (s *Server) handleSetPower(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	dev, ok := s.engine.Snapshot().Device(address)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	var req PowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.State == "" {
		writeBadRequest(w, "state field is required")
		return
	}
	target, err := power.ParseTarget(req.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "state must be on, standby or sleep")
		return
	}

	if !req.Force && !dev.PowerState.Allows(target) {
		writeConflict(w, "cannot switch to "+target.String()+" while "+dev.PowerState.Label())
		return
	}

	cmd := basestation.ChangePowerState(address, target).WithSource(commandSource)
	s.enqueue(w, cmd)
}

// handleScan enqueues a RestartScan command. A scan already in progress is
// a conflict.
func (s *Server) handleScan(w http.ResponseWriter, _ *http.Request) {
	if s.engine.Snapshot().Scanning {
		writeConflict(w, "scan already in progress")
		return
	}
	s.enqueue(w, basestation.RestartScan().WithSource(commandSource))
}

// enqueue assigns the command id, submits the command and writes the 202.
func (s *Server) enqueue(w http.ResponseWriter, cmd basestation.Command) {
	cmd.ID = basestation.NewCommandID()
	cmd.IssuedAt = time.Now().UTC()

	if !s.engine.Enqueue(cmd) {
		s.logger.Warn("command queue full", "kind", cmd.Kind, "address", cmd.Address)
		writeUnavailable(w, "command queue full")
		return
	}

	s.logger.Debug("command enqueued", "id", cmd.ID, "kind", cmd.Kind, "address", cmd.Address, "target", cmd.Target)
	writeJSON(w, http.StatusAccepted, commandAccepted{Status: "accepted", Command: cmd})
}
