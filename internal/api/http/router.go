package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/mind-engage/mindengage-progress/internal/auth/middleware"
	"github.com/mind-engage/mindengage-progress/internal/course"
	"github.com/mind-engage/mindengage-progress/internal/exam"
	"github.com/mind-engage/mindengage-progress/internal/rbac"
	"github.com/mind-engage/mindengage-progress/internal/service"
	syncx "github.com/mind-engage/mindengage-progress/internal/sync"
)

type Deps struct {
	Service *service.Service
	Exams   exam.Store
	Courses course.Store
	Auth    *auth.AuthService
	Users   *auth.UserRepo
	Events  *syncx.EventRepo
	// Ping backs /readyz; nil means always ready.
	Ping func(ctx context.Context) error

	CORSOrigins    []string
	AllowClaimRole bool
	RequestTimeout time.Duration
}

// NewRouter mounts every route: public login and health checks, then the JWT
// protected API with a permission per route.
func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ping != nil {
			if err := d.Ping(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/auth/login", auth.LoginHandler(d.Auth))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))
		if d.Users != nil {
			pr.Use(auth.AttachRoleFromDB(d.Users, d.AllowClaimRole))
			pr.Post("/auth/password", auth.ChangePasswordHandler(d.Users))
			pr.With(rbac.Require("users:upsert")).
				Post("/users", UpsertUsersHandler(d.Users))
		}

		// Courses and chapters
		pr.With(rbac.Require("course:create")).
			Post("/courses", PutCourseHandler(d.Courses))
		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}", CourseOverviewHandler(d.Service))
		pr.With(rbac.Require("purchase:grant")).
			Post("/courses/{courseID}/purchases", GrantPurchaseHandler(d.Courses))
		pr.With(rbac.Require("chapter:view")).
			Get("/courses/{courseID}/chapters/{chapterID}", ChapterAccessHandler(d.Service))
		pr.With(rbac.Require("chapter:complete")).
			Post("/courses/{courseID}/chapters/{chapterID}/complete", CompleteChapterHandler(d.Service))

		// Exams and attempts
		pr.With(rbac.Require("exam:create")).
			Post("/exams", PutExamHandler(d.Exams, d.Courses))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", GetExamHandler(d.Service, d.Exams))
		pr.With(rbac.Require("attempt:submit")).
			Post("/exams/{examID}/attempts", SubmitExamHandler(d.Service))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", ListAttemptsHandler(d.Exams))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", GetAttemptHandler(d.Exams))
		pr.With(rbac.Require("attempt:grade")).
			Post("/attempts/{attemptID}/override", OverrideScoreHandler(d.Service))

		if d.Events != nil {
			pr.With(rbac.Require("events:read")).
				Get("/events", EventsSinceHandler(d.Events))
		}
	})
	return r
}
