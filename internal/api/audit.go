package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/audit"
)

// handleListCommands returns paginated command log entries with optional filters.
//
// Query parameters:
//   - address: filter by device address
//   - outcome: filter by outcome (ok, dropped, failed)
//   - source: filter by issuing front end (api, mqtt, schedule, tui)
//   - since: RFC 3339 lower bound on execution time
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "command log not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Address: q.Get("address"),
		Outcome: q.Get("outcome"),
		Source:  q.Get("source"),
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list commands", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListSightings returns every base station ever discovered.
func (s *Server) handleListSightings(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "command log not configured")
		return
	}

	sightings, err := s.audit.Sightings(r.Context())
	if err != nil {
		s.logger.Error("failed to list sightings", "error", err)
		writeInternalError(w, "failed to list sightings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sightings": sightings, "count": len(sightings)})
}
