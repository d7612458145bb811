package server

import (
	"net/http"
	"time"

	"github.com/lazypower/sparkcoach/internal/engine"
)

func (s *Server) handleAtRisk(w http.ResponseWriter, r *http.Request) {
	var level engine.RiskLevel
	if v := r.URL.Query().Get("level"); v != "" {
		parsed, err := engine.ParseRiskLevel(v)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		level = parsed
	}

	resources, err := s.engine.Tracker.AtRisk(r.Context(), level)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources, "count": len(resources)})
}

func (s *Server) handleDue(w http.ResponseWriter, r *http.Request) {
	var date time.Time
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse(engine.DateLayout, v)
		if err != nil {
			badRequest(w, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	resources, err := s.engine.Tracker.DueForReview(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources, "count": len(resources)})
}
