package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "kis-sentinel",
	})
}

// handleSystemStatus reports the last poll cycle and store reachability
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	_, lastRun, lastErr := s.poll.LastResult()

	storeStatus := "ok"
	if err := s.store.Ping(r.Context()); err != nil {
		storeStatus = "unreachable"
	}

	response := map[string]interface{}{
		"status":   "running",
		"store":    storeStatus,
		"last_run": lastRun.Format(time.RFC3339),
	}
	if lastErr != nil {
		response["last_error"] = lastErr.Error()
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleHoldingsReport returns the latest diff result from the poll loop
func (s *Server) handleHoldingsReport(w http.ResponseWriter, r *http.Request) {
	result, lastRun, _ := s.poll.LastResult()
	if result == nil {
		s.writeError(w, http.StatusNotFound, "no cycle has completed yet")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"as_of":  lastRun.Format(time.RFC3339),
		"report": result,
	})
}

// handleTrendReport computes the current trend ranking from flow history
func (s *Server) handleTrendReport(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.scorer.Rank(s.window, s.topN)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"window_days": s.window,
		"candidates":  candidates,
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
