package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/metrics"
)

// maxSummaryBytes bounds a session upload body.
const maxSummaryBytes = 1 << 20

func (s *Server) handleMergeSession(w http.ResponseWriter, r *http.Request) {
	var sum metrics.SessionSummary
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSummaryBytes)).Decode(&sum); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := sum.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	merged, err := s.store.MergeSessionSummary(r.Context(), sum)
	if err != nil {
		s.log.Error("merge failed", "session_id", sum.SessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.log.Info("session received",
		"session_id", sum.SessionID,
		"user", sum.UserID,
		"date", sum.Date,
		"reps", sum.TotalReps(),
		"merged", merged,
	)
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sum.SessionID, "merged": merged})
}

func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	date, err := parseDay(chi.URLParam(r, "date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date: " + err.Error()})
		return
	}
	row, err := s.store.GetDailySummary(r.Context(), chi.URLParam(r, "user"), date)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleWeeklySummaries(w http.ResponseWriter, r *http.Request) {
	end, err := parseDay(r.URL.Query().Get("end"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end: " + err.Error()})
		return
	}
	rows, err := s.store.GetWeeklySummaries(r.Context(), chi.URLParam(r, "user"), end)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleQuerySessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	rows, err := s.store.QuerySessions(r.Context(), chi.URLParam(r, "user"), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleExercises(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, exercise.Catalog())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseDay parses a YYYY-MM-DD or RFC 3339 day. Empty means today.
func parseDay(s string) (time.Time, error) {
	if s == "" || s == "today" {
		return time.Now(), nil
	}
	if t, err := time.Parse(metrics.DateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
