package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-progress/internal/course"
	"github.com/mind-engage/mindengage-progress/internal/rbac"
	"github.com/mind-engage/mindengage-progress/internal/service"
)

type chapterReq struct {
	ID          string `json:"id" validate:"required,max=128"`
	Title       string `json:"title" validate:"required"`
	Position    int    `json:"position" validate:"gte=0"`
	IsFree      bool   `json:"is_free"`
	IsPublished bool   `json:"is_published"`
}

type courseReq struct {
	ID       string       `json:"id" validate:"required,max=128"`
	Title    string       `json:"title" validate:"required"`
	Chapters []chapterReq `json:"chapters" validate:"unique=ID,dive"`
}

func (req courseReq) course() course.Course {
	c := course.Course{ID: req.ID, Title: req.Title}
	for _, ch := range req.Chapters {
		c.Chapters = append(c.Chapters, course.Chapter{
			ID:          ch.ID,
			CourseID:    req.ID,
			Title:       ch.Title,
			Position:    ch.Position,
			IsFree:      ch.IsFree,
			IsPublished: ch.IsPublished,
		})
	}
	return c
}

// POST /courses
func PutCourseHandler(courses course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req courseReq
		if !decode(w, r, &req) {
			return
		}
		c := req.course()
		if err := courses.PutCourse(r.Context(), c); err != nil {
			writeError(w, r, err)
			return
		}
		stored, err := courses.GetCourse(r.Context(), c.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, stored)
	}
}

// GET /courses/{courseID}
func CourseOverviewHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := rbac.SubjectFromContext(r.Context())
		ov, err := svc.CourseOverview(r.Context(), userID, chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ov)
	}
}

// POST /courses/{courseID}/purchases  { "user_id": "..." }
func GrantPurchaseHandler(courses course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id" validate:"required"`
		}
		if !decode(w, r, &req) {
			return
		}
		courseID := chi.URLParam(r, "courseID")
		if err := courses.GrantPurchase(r.Context(), req.UserID, courseID); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"user_id": req.UserID, "course_id": courseID})
	}
}

// GET /courses/{courseID}/chapters/{chapterID}
func ChapterAccessHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.ChapterAccess(r.Context(),
			rbac.SubjectFromContext(r.Context()),
			chi.URLParam(r, "courseID"),
			chi.URLParam(r, "chapterID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// POST /courses/{courseID}/chapters/{chapterID}/complete
func CompleteChapterHandler(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		comp, err := svc.CompleteChapter(r.Context(),
			rbac.SubjectFromContext(r.Context()),
			chi.URLParam(r, "courseID"),
			chi.URLParam(r, "chapterID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, comp)
	}
}
