package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/mind-engage/mindengage-progress/internal/api/http"
	auth "github.com/mind-engage/mindengage-progress/internal/auth/middleware"
	"github.com/mind-engage/mindengage-progress/internal/config"
	"github.com/mind-engage/mindengage-progress/internal/course"
	"github.com/mind-engage/mindengage-progress/internal/db"
	"github.com/mind-engage/mindengage-progress/internal/exam"
	"github.com/mind-engage/mindengage-progress/internal/service"
	syncx "github.com/mind-engage/mindengage-progress/internal/sync"
)

func main() {
	cfg := config.Load()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	exams := exam.NewSQLStore(dbh)
	courses := course.NewSQLStore(dbh)
	events := syncx.NewEventRepo(dbh, cfg.SiteID)
	svc := service.New(exams, courses, events, service.WithPassThreshold(cfg.DefaultPassThreshold))

	// --- Auth (local JWT) ---
	users := auth.NewUserRepo(dbh)
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, users, cfg.AdminUser, cfg.AdminPassHash)

	h := api.NewRouter(api.Deps{
		Service:        svc,
		Exams:          exams,
		Courses:        courses,
		Auth:           authSvc,
		Users:          users,
		Events:         events,
		Ping:           dbh.PingContext,
		CORSOrigins:    cfg.CORSOrigins(),
		AllowClaimRole: cfg.AllowClaimRole,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		sctx, scancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s (mode=%s, db=%s, site=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, cfg.SiteID)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Printf("stopped")
}
