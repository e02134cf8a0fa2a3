package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	authhandler "caseview/internal/auth/handler"
	authservice "caseview/internal/auth/service"
	"caseview/internal/auth/store/operator"
	"caseview/internal/platform/config"
	"caseview/internal/platform/database"
	"caseview/internal/platform/httpserver"
	"caseview/internal/platform/logger"
	"caseview/internal/platform/metrics"
	"caseview/internal/platform/middleware"
	reviewhandler "caseview/internal/review/handler"
	reviewservice "caseview/internal/review/service"
	"caseview/internal/review/store/caselog"
	"caseview/internal/review/store/feedback"
	"caseview/internal/review/store/source"
	"caseview/internal/review/store/status"
	"caseview/pkg/platform/httputil"
	"caseview/pkg/platform/tx"

	jwttoken "caseview/internal/jwt_token"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	// Migrations run best-effort on boot so a fresh environment comes up
	// without a separate step. Deploys with locked-down schemas run
	// cmd/migrate instead.
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		log.Warn("schema migration failed, continuing with existing schema", "error", err.Error())
	}

	m := metrics.New()
	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "caseview", "caseview")
	jwtValidator := jwttoken.NewJWTServiceAdapter(jwtService)

	authService := authservice.NewService(operator.NewPostgres(db), jwtService, cfg.TokenTTL, m)
	reviewService := reviewservice.New(
		source.NewPostgres(db),
		status.NewPostgres(db),
		feedback.NewPostgres(db),
		caselog.NewPostgres(db),
		tx.NewSQLRunner(db),
		m,
	)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	router.Use(middleware.Latency(m))

	router.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "case review API is running"})
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authhandler.New(authService, log, jwtValidator).Register(router)
	reviewhandler.New(reviewService, log, jwtValidator).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting caseview server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err.Error())
		os.Exit(1)
	}
	log.Info("server stopped")
}
