package httpapi

import (
	"net/http"
)

func (s *HTTPServer) Health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, healthResponse{
		Status:    "Healthy",
		Timestamp: s.now().UTC(),
		Version:   Version,
	})
}

// DatabaseHealth pings the pool; the driver error is logged, not returned.
func (s *HTTPServer) DatabaseHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error(r.Context(), "database health check failed", "error", err)
		s.writeJSON(w, r, http.StatusServiceUnavailable, databaseHealthResponse{
			Status:    "Unhealthy",
			Database:  "Disconnected",
			Timestamp: s.now().UTC(),
		})
		return
	}

	s.writeJSON(w, r, http.StatusOK, databaseHealthResponse{
		Status:    "Healthy",
		Database:  "Connected",
		Timestamp: s.now().UTC(),
	})
}
