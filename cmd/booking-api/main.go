package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/naildiary/booking/internal/booking"
	"github.com/naildiary/booking/internal/catalog"
	"github.com/naildiary/booking/internal/handlers"
	"github.com/naildiary/booking/internal/outbox"
	"github.com/naildiary/booking/internal/schedule"
	"github.com/naildiary/booking/internal/stats"
	"github.com/naildiary/booking/internal/storage"
	"github.com/naildiary/booking/internal/tips"
	"github.com/naildiary/booking/libs/config"
	"github.com/naildiary/booking/libs/db"
	"github.com/naildiary/booking/libs/httpx"
	"github.com/naildiary/booking/libs/kafkax"
	"github.com/naildiary/booking/libs/otelx"
	"github.com/naildiary/booking/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-api")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, int32(config.Int("DB_MAX_CONNS", 16)))
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository()
	apptRepo := storage.NewAppointmentRepository(pool, outboxRepo)
	offeringRepo := storage.NewOfferingRepository(pool)
	settingsRepo := storage.NewSettingsRepository(pool)
	tipRepo := storage.NewTipRepository(pool)
	userRepo := storage.NewUserRepository(pool)

	policy := schedule.NewPolicy(settingsRepo)
	checker := schedule.NewChecker(policy, apptRepo)
	catalogSvc := catalog.NewService(offeringRepo)
	bookingSvc := booking.NewService(apptRepo, catalogSvc, checker)
	tipSvc := tips.NewService(tipRepo)
	statsSvc := stats.NewService(apptRepo)

	brokers := config.String("KAFKA_BROKERS", "")
	if brokers != "" {
		publisher := outbox.NewPublisher(pool, outboxRepo, kafkax.SplitBrokers(brokers), logger)
		go publisher.Run(ctx)
	} else {
		logger.Warn("kafka brokers not configured; outbox events will accumulate unpublished")
	}

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	// Public booking endpoints are rate limited per client; Redis keeps the
	// counters shared across replicas when available.
	var limit httpx.Middleware
	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 30)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		limit = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service).Middleware(logger, true)
	} else {
		limit = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
	}

	apptHandler := handlers.NewAppointmentHandler(bookingSvc, logger)
	availHandler := handlers.NewAvailabilityHandler(policy, checker, catalogSvc, logger)
	offeringHandler := handlers.NewOfferingHandler(catalogSvc, logger)
	tipHandler := handlers.NewTipHandler(tipSvc, logger)
	statsHandler := handlers.NewStatsHandler(statsSvc, logger)
	authHandler := handlers.NewAuthHandler(userRepo, jwtSecret, config.Duration("JWT_TTL", 24*time.Hour), logger)
	admin := handlers.RequireRole(jwtSecret, "admin", logger)

	mux.Handle("POST /api/v1/appointments", limit(http.HandlerFunc(apptHandler.Create)))
	mux.HandleFunc("GET /api/v1/availability", availHandler.Check)
	mux.HandleFunc("GET /api/v1/occupied-slots", availHandler.OccupiedSlots)
	mux.HandleFunc("GET /api/v1/verify/{token}", apptHandler.VerifyByToken)
	mux.Handle("POST /api/v1/verify/pin", limit(http.HandlerFunc(apptHandler.VerifyByPIN)))
	mux.HandleFunc("GET /api/v1/offerings", offeringHandler.ListPublic)
	mux.HandleFunc("GET /api/v1/tips", tipHandler.ListPublic)
	mux.HandleFunc("GET /api/v1/tips/{id}", tipHandler.Get)
	mux.Handle("POST /api/v1/auth/login", limit(http.HandlerFunc(authHandler.Login)))

	mux.Handle("GET /api/v1/auth/me", admin(http.HandlerFunc(authHandler.Me)))
	mux.Handle("GET /api/v1/admin/appointments", admin(http.HandlerFunc(apptHandler.List)))
	mux.Handle("GET /api/v1/admin/appointments/archived", admin(http.HandlerFunc(apptHandler.ListArchived)))
	mux.Handle("GET /api/v1/admin/appointments/{id}", admin(http.HandlerFunc(apptHandler.Get)))
	mux.Handle("PUT /api/v1/admin/appointments/{id}", admin(http.HandlerFunc(apptHandler.Update)))
	mux.Handle("DELETE /api/v1/admin/appointments/{id}", admin(http.HandlerFunc(apptHandler.Delete)))
	mux.Handle("POST /api/v1/admin/appointments/{id}/confirm", admin(http.HandlerFunc(apptHandler.Confirm)))
	mux.Handle("POST /api/v1/admin/appointments/{id}/cancel", admin(http.HandlerFunc(apptHandler.Cancel)))
	mux.Handle("PATCH /api/v1/admin/appointments/{id}/status", admin(http.HandlerFunc(apptHandler.SetStatus)))
	mux.Handle("POST /api/v1/admin/appointments/{id}/unarchive", admin(http.HandlerFunc(apptHandler.Unarchive)))
	mux.Handle("GET /api/v1/admin/offerings", admin(http.HandlerFunc(offeringHandler.ListAll)))
	mux.Handle("POST /api/v1/admin/offerings", admin(http.HandlerFunc(offeringHandler.Create)))
	mux.Handle("GET /api/v1/admin/offerings/{id}", admin(http.HandlerFunc(offeringHandler.Get)))
	mux.Handle("PUT /api/v1/admin/offerings/{id}", admin(http.HandlerFunc(offeringHandler.Update)))
	mux.Handle("DELETE /api/v1/admin/offerings/{id}", admin(http.HandlerFunc(offeringHandler.Delete)))
	mux.Handle("GET /api/v1/admin/tips", admin(http.HandlerFunc(tipHandler.ListAll)))
	mux.Handle("POST /api/v1/admin/tips", admin(http.HandlerFunc(tipHandler.Create)))
	mux.Handle("PUT /api/v1/admin/tips/{id}", admin(http.HandlerFunc(tipHandler.Update)))
	mux.Handle("DELETE /api/v1/admin/tips/{id}", admin(http.HandlerFunc(tipHandler.Delete)))
	mux.Handle("GET /api/v1/admin/availability", admin(http.HandlerFunc(availHandler.GetConfig)))
	mux.Handle("PUT /api/v1/admin/availability", admin(http.HandlerFunc(availHandler.PutConfig)))
	mux.Handle("GET /api/v1/admin/stats", admin(http.HandlerFunc(statsHandler.Report)))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
		httpx.WithCORS(splitList(config.String("CORS_ORIGINS", ""))),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking-api")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
