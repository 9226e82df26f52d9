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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	api "github.com/mind-engage/mindengage-prep/internal/api/http"
	"github.com/mind-engage/mindengage-prep/internal/assessment"
	auth "github.com/mind-engage/mindengage-prep/internal/auth/middleware"
	"github.com/mind-engage/mindengage-prep/internal/bank"
	"github.com/mind-engage/mindengage-prep/internal/config"
	"github.com/mind-engage/mindengage-prep/internal/db"
	"github.com/mind-engage/mindengage-prep/internal/event"
	"github.com/mind-engage/mindengage-prep/internal/grading"
	"github.com/mind-engage/mindengage-prep/internal/logging"
	"github.com/mind-engage/mindengage-prep/internal/metrics"
	syncx "github.com/mind-engage/mindengage-prep/internal/sync"
)

func main() {
	cfg := config.FromEnv()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("db open failed")
	}
	defer dbh.Close()

	// --- Session locking: Redis when shared, in-process otherwise ---
	var locker assessment.Locker = assessment.NewLocalLocker()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed")
		}
		locker = assessment.NewRedisLocker(rdb, cfg.LockTTL)
	}

	// --- Events: event_log always, RabbitMQ when configured ---
	pub, err := event.NewPublisher(cfg.RabbitMQURI, cfg.RabbitMQExchange)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq setup failed")
	}
	defer pub.Close()
	sinks := assessment.MultiSink{syncx.NewEventRepo(dbh, cfg.SiteID), pub}

	m := metrics.New()
	th := grading.Thresholds{Practice: cfg.PracticeThreshold, Interview: cfg.InterviewThreshold}
	eng := assessment.NewEngine(
		assessment.NewSQLStore(dbh),
		bank.NewSQLBank(dbh),
		assessment.WithEvaluator(assessment.NewEvaluator(grading.NewDefaultGrader(), th)),
		assessment.WithLocker(locker),
		assessment.WithEventSink(sinks),
		assessment.WithObserver(m),
	)

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.RequestLogger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Local login (enabled in offline mode by default; can be enabled online via env)
	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, auth.Credentials{
			AdminUser:     cfg.AdminUser,
			AdminPassHash: cfg.AdminPassHash,
			DevLearners:   cfg.Mode == config.ModeOffline,
		}))
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		api.MountSessions(pr, eng)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})
	r.Handle("/metrics", m.Handler())

	if cfg.SweepInterval > 0 {
		go sweep(ctx, eng, cfg.SweepInterval, cfg.StaleAfter)
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("mode", string(cfg.Mode)).Str("db", cfg.DBDriver).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}
