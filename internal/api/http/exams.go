package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-progress/internal/assessment"
	"github.com/mind-engage/mindengage-progress/internal/course"
	"github.com/mind-engage/mindengage-progress/internal/exam"
	"github.com/mind-engage/mindengage-progress/internal/rbac"
	"github.com/mind-engage/mindengage-progress/internal/service"
)

type optionReq struct {
	ID        string `json:"id" validate:"required"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type questionReq struct {
	ID               string      `json:"id" validate:"required"`
	Text             string      `json:"text"`
	Kind             string      `json:"kind" validate:"required,oneof=single multiple text"`
	Options          []optionReq `json:"options" validate:"unique=ID,dive"`
	CorrectOptionIDs []string    `json:"correct_option_ids"`
	Points           int         `json:"points" validate:"gte=0"`
}

type examReq struct {
	ID            string        `json:"id" validate:"required,max=128"`
	ChapterID     string        `json:"chapter_id" validate:"required"`
	Title         string        `json:"title"`
	PassThreshold *int          `json:"pass_threshold" validate:"omitempty,gte=0,lte=100"`
	Questions     []questionReq `json:"questions" validate:"required,min=1,unique=ID,dive"`
}

func (req examReq) exam() assessment.Exam {
	e := assessment.Exam{
		ID:            req.ID,
		ChapterID:     req.ChapterID,
		Title:         req.Title,
		PassThreshold: req.PassThreshold,
	}
	for _, q := range req.Questions {
		aq := assessment.Question{
			ID:               q.ID,
			Text:             q.Text,
			Kind:             assessment.Kind(q.Kind),
			CorrectOptionIDs: q.CorrectOptionIDs,
			Points:           q.Points,
		}
		for _, o := range q.Options {
			aq.Options = append(aq.Options, assessment.Option{ID: o.ID, Text: o.Text, IsCorrect: o.IsCorrect})
		}
		e.Questions = append(e.Questions, aq)
	}
	return e
}

// POST /exams
func PutExamHandler(exams exam.Store, courses course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req examReq
		if !decode(w, r, &req) {
			return
		}
		e := req.exam()
		if err := e.CheckKeys(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		if _, err := courses.CourseForChapter(r.Context(), req.ChapterID); err != nil {
			writeError(w, r, err)
			return
		}
		if err := exams.PutExam(r.Context(), e); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// GET /exams/{examID}
// Authors get the answer key; everyone else gets the learner view, which
// is gated like the chapter itself.
func GetExamHandler(svc *service.Service, exams exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		if rbac.Allowed(r.Context(), "exam:create") {
			e, err := exams.GetExam(r.Context(), id)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, e)
			return
		}
		e, err := svc.ExamForLearner(r.Context(), rbac.SubjectFromContext(r.Context()), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// POST /exams/{examID}/attempts  { "answers": { "<question id>": ... } }
func SubmitExamHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Answers map[string]any `json:"answers"`
		}
		if !decode(w, r, &req) {
			return
		}
		sub, err := svc.SubmitExam(r.Context(),
			rbac.SubjectFromContext(r.Context()),
			chi.URLParam(r, "examID"),
			req.Answers)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}
