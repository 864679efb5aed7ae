package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/mindengage-progress/internal/assessment"
	auth "github.com/mind-engage/mindengage-progress/internal/auth/middleware"
	"github.com/mind-engage/mindengage-progress/internal/course"
	"github.com/mind-engage/mindengage-progress/internal/exam"
	"github.com/mind-engage/mindengage-progress/internal/progress"
	"github.com/mind-engage/mindengage-progress/internal/service"
)

const maxBody = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorBody struct {
	Error    string                   `json:"error"`
	Decision *progress.AccessDecision `json:"decision,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v and runs its validate tags.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad json"})
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: validationMessage(err)})
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// writeError maps domain errors onto status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *service.LockedError
	switch {
	case errors.As(err, &locked):
		d := locked.Decision
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error(), Decision: &d})
	case errors.Is(err, assessment.ErrInvalidSubmission),
		errors.Is(err, service.ErrInvalidScore),
		errors.Is(err, auth.ErrPasswordMissing),
		errors.Is(err, auth.ErrUnknownRole):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.Is(err, exam.ErrNotFound),
		errors.Is(err, course.ErrNotFound),
		errors.Is(err, progress.ErrUnknownChapter),
		errors.Is(err, auth.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, service.ErrExamRequired),
		errors.Is(err, service.ErrNotChapterExam),
		errors.Is(err, assessment.ErrNotPresentable),
		errors.Is(err, course.ErrChapterTaken):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
