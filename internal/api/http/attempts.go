package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-progress/internal/exam"
	"github.com/mind-engage/mindengage-progress/internal/rbac"
	"github.com/mind-engage/mindengage-progress/internal/service"
)

// GET /attempts/{attemptID}
// Without attempt:view-all only the caller's own attempts are visible.
func GetAttemptHandler(exams exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := exams.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !rbac.Allowed(r.Context(), "attempt:view-all") && a.UserID != rbac.SubjectFromContext(r.Context()) {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// GET /attempts?exam_id=&user_id=&limit=&offset=
func ListAttemptsHandler(exams exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := exam.AttemptListOpts{
			ExamID: q.Get("exam_id"),
			UserID: q.Get("user_id"),
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		}
		if !rbac.Allowed(r.Context(), "attempt:view-all") {
			opts.UserID = rbac.SubjectFromContext(r.Context())
		}
		list, err := exams.ListAttempts(r.Context(), opts)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list, "limit": opts.Limit, "offset": opts.Offset})
	}
}

// POST /attempts/{attemptID}/override  { "score": 85, "comment": "..." }
func OverrideScoreHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Score   *int   `json:"score" validate:"required"`
			Comment string `json:"comment" validate:"max=2000"`
		}
		if !decode(w, r, &req) {
			return
		}
		sub, err := svc.OverrideScore(r.Context(),
			chi.URLParam(r, "attemptID"),
			*req.Score,
			rbac.SubjectFromContext(r.Context()),
			req.Comment)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
