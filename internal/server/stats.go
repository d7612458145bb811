package server

import "net/http"

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats.Streak(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleWeeklySummary(w http.ResponseWriter, r *http.Request) {
	ws, err := s.engine.Stats.WeeklySummary(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.Stats.Dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
