package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/sparkcoach/internal/engine"
	"github.com/lazypower/sparkcoach/internal/store"
)

// maxBodyBytes bounds request bodies; answers are free text.
const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// --- Quiz ---

func (s *Server) handleQuizStart(w http.ResponseWriter, r *http.Request) {
	var req engine.StartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.engine.Quiz.Start(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleQuizAnswer(w http.ResponseWriter, r *http.Request) {
	var req engine.AnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.engine.Quiz.Answer(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleQuizSession(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Quiz.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Nudges ---

type nudgeJSON struct {
	ID           int64  `json:"id"`
	ResourcePath string `json:"resource_path"`
	NudgeType    string `json:"nudge_type"`
	Message      string `json:"message"`
	Fallback     bool   `json:"fallback"`
	CreatedAt    string `json:"created_at"`
}

func toNudgeJSON(n store.Nudge) nudgeJSON {
	return nudgeJSON{
		ID:           n.ID,
		ResourcePath: n.ResourcePath,
		NudgeType:    n.NudgeType,
		Message:      n.Message,
		Fallback:     n.Fallback,
		CreatedAt:    time.UnixMilli(n.CreatedAt).UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleListNudges(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	nudges, err := s.engine.Nudges.Pending(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]nudgeJSON, 0, len(nudges))
	for _, n := range nudges {
		out = append(out, toNudgeJSON(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"nudges": out, "count": len(out)})
}

func (s *Server) handleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NudgeIDs []int64 `json:"nudge_ids"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.NudgeIDs) == 0 {
		badRequest(w, "nudge_ids is required")
		return
	}
	updated, err := s.engine.Nudges.MarkDelivered(r.Context(), req.NudgeIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "updated": updated})
}

func (s *Server) handleRunCheck(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Sweep(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("sweep finished",
		"status", res.Status,
		"scanned", res.Scanned,
		"at_risk", res.AtRiskCount,
		"nudges", res.NudgesCreated)
	writeJSON(w, http.StatusOK, res)
}
