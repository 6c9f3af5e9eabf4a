package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	authedge "github.com/authedge/authedge"
	"github.com/authedge/authedge/metrics"
	"github.com/authedge/authedge/middleware"
	"github.com/authedge/authedge/notify"
	"github.com/authedge/authedge/postgres"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := authedge.LoadConfig()
	if err != nil {
		log.Fatal("configuration invalid", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	defer rdb.Close()

	pool, err := postgres.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal("postgres unreachable", zap.Error(err))
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	builder := authedge.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(postgres.NewAccountStore(pool)).
		WithLogger(log).
		WithMetrics(m)

	if cfg.AWS.Region != "" {
		mailer, err := notify.NewMailer(ctx, cfg.AWS.Region, cfg.AWS.SenderEmail)
		if err != nil {
			log.Fatal("ses client", zap.Error(err))
		}
		builder = builder.WithMailer(mailer)

		if cfg.AWS.EventsTopicARN != "" {
			publisher, err := notify.NewPublisher(ctx, cfg.AWS.Region, cfg.AWS.EventsTopicARN)
			if err != nil {
				log.Fatal("sns client", zap.Error(err))
			}
			builder = builder.WithEventPublisher(publisher)
		}
	}

	engine, err := builder.Build()
	if err != nil {
		log.Fatal("engine build", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.Transport.ListenAddr,
		Handler:           router(engine, cfg, rdb, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", cfg.Transport.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

func router(engine *authedge.Engine, cfg authedge.Config, rdb redis.UniversalClient, registry *prometheus.Registry) http.Handler {
	gate := middleware.Gate(engine, cfg.Transport)
	h := handlers{engine: engine, cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /password-reset/request", h.requestReset)
	mux.HandleFunc("POST /password-reset/confirm", h.confirmReset)
	mux.HandleFunc("POST /verify-email/request", h.requestVerification)
	mux.HandleFunc("POST /verify-email/confirm", h.confirmVerification)

	mux.Handle("POST /logout", middleware.RequireIdentity(http.HandlerFunc(h.logout)))
	mux.Handle("POST /logout-all", middleware.RequireIdentity(http.HandlerFunc(h.logoutAll)))
	mux.Handle("GET /sessions", middleware.RequireIdentity(http.HandlerFunc(h.sessions)))
	mux.Handle("POST /password", middleware.RequireIdentity(http.HandlerFunc(h.changePassword)))
	mux.Handle("DELETE /account", middleware.RequireIdentity(http.HandlerFunc(h.deleteAccount)))
	mux.Handle("GET /me", middleware.RequireIdentity(http.HandlerFunc(h.me)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return withRequestContext(gate(mux))
}

// withRequestContext binds the caller's IP and User-Agent into the
// request context before the gate and handlers run.
func withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := authedge.WithClientIP(r.Context(), clientIP(r))
		ctx = authedge.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
