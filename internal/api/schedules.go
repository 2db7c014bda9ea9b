package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/automation"
)

// Scheduler is the subset of *automation.Scheduler the API needs.
type Scheduler interface {
	List() []automation.Status
	Trigger(name, trigger string) (*automation.Execution, error)
}

// handleListSchedules returns every power schedule with its next and last run.
func (s *Server) handleListSchedules(w http.ResponseWriter, _ *http.Request) {
	if s.schedules == nil {
		writeJSON(w, http.StatusOK, map[string]any{"schedules": []automation.Status{}, "count": 0})
		return
	}
	list := s.schedules.List()
	writeJSON(w, http.StatusOK, map[string]any{"schedules": list, "count": len(list)})
}

// handleRunSchedule fires a schedule immediately. The response lists the
// enqueued command ids and the devices that were skipped.
func (s *Server) handleRunSchedule(w http.ResponseWriter, r *http.Request) {
	if s.schedules == nil {
		writeNotFound(w, "schedule not found")
		return
	}

	exec, err := s.schedules.Trigger(chi.URLParam(r, "name"), automation.TriggerManual)
	if err != nil {
		if errors.Is(err, automation.ErrScheduleNotFound) {
			writeNotFound(w, "schedule not found")
			return
		}
		s.logger.Error("failed to run schedule", "error", err)
		writeInternalError(w, "failed to run schedule")
		return
	}

	writeJSON(w, http.StatusAccepted, exec)
}
