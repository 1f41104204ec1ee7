package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rentora/appointment-service/internal/directory"
	"github.com/rentora/appointment-service/internal/enrichment"
	"github.com/rentora/appointment-service/internal/events"
	"github.com/rentora/appointment-service/internal/handlers"
	"github.com/rentora/appointment-service/internal/outbox"
	"github.com/rentora/appointment-service/internal/reminders"
	"github.com/rentora/appointment-service/internal/scheduling"
	"github.com/rentora/appointment-service/internal/service"
	"github.com/rentora/appointment-service/internal/storage"
	"github.com/rentora/appointment-service/libs/config"
	"github.com/rentora/appointment-service/libs/db"
	"github.com/rentora/appointment-service/libs/httpx"
	"github.com/rentora/appointment-service/libs/kafkax"
	otelx "github.com/rentora/appointment-service/libs/otel"
	"github.com/rentora/appointment-service/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func businessHours(logger *slog.Logger) scheduling.BusinessHours {
	hours := scheduling.DefaultBusinessHours()
	startHour, startMin, err := config.Clock("BUSINESS_DAY_START", "09:00")
	if err != nil {
		logger.Warn("invalid BUSINESS_DAY_START, using 09:00", "err", err)
	} else {
		hours.StartHour, hours.StartMinute = startHour, startMin
	}
	endHour, endMin, err := config.Clock("BUSINESS_DAY_END", "17:00")
	if err != nil {
		logger.Warn("invalid BUSINESS_DAY_END, using 17:00", "err", err)
	} else {
		hours.EndHour, hours.EndMinute = endHour, endMin
	}
	if interval := config.Int("SLOT_INTERVAL_MINUTES", 30); interval > 0 {
		hours.SlotInterval = time.Duration(interval) * time.Minute
	}
	return hours
}

func main() {
	serviceName := config.String("SERVICE_NAME", "appointment-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(serviceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(serviceName))
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
	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
	}

	var users directory.UserDirectory = directory.NewUserClient(directory.ClientConfig{
		BaseURL: config.String("USER_SERVICE_URL", "http://user-service:8081"),
	})
	var properties directory.PropertyDirectory = directory.NewPropertyClient(directory.ClientConfig{
		BaseURL: config.String("PROPERTY_SERVICE_URL", "http://property-service:8082"),
	})
	if rdb != nil {
		ttl := config.Minutes("DIRECTORY_CACHE_TTL_MINUTES", time.Minute)
		users = directory.NewCachedUserDirectory(users, rdb, ttl, logger)
		properties = directory.NewCachedPropertyDirectory(properties, rdb, ttl, logger)
	}

	enricher := enrichment.New(users, properties, logger, enrichment.Config{
		CancelLead:     config.Minutes("CANCEL_LEAD_TIME_MINUTES", 0),
		RescheduleLead: config.Minutes("RESCHEDULE_LEAD_TIME_MINUTES", 0),
	})

	repo := storage.NewAppointmentRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	brokers := config.String("KAFKA_BROKERS", "")

	var emitter events.Emitter = events.NopEmitter{}
	if brokers != "" {
		emitter = events.NewOutboxEmitter(outboxRepo, logger)
		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go publisher.Run(ctx)
	}

	svc := service.New(repo, enricher, emitter, logger, service.Config{
		Hours:             businessHours(logger),
		ReminderLookahead: config.Minutes("REMINDER_LOOKAHEAD_MINUTES", 24*time.Hour),
	})

	if config.Bool("REMINDERS_ENABLED", true) {
		worker := reminders.NewWorker(svc, logger, reminders.WorkerConfig{
			Interval: config.Minutes("REMINDER_POLL_MINUTES", time.Minute),
		})
		go worker.Run(ctx)
	}

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	handlers.New(svc, logger).Register(mux)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(30 * time.Second),
	}
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if limit > 0 {
		if rdb != nil {
			limiter := httpx.NewRedisRateLimiter(rdb, limit, time.Minute, serviceName)
			middlewares = append(middlewares, limiter.Middleware(logger, true))
		} else {
			middlewares = append(middlewares, httpx.NewRateLimiter(limit, time.Minute).Middleware())
		}
	}
	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "appointments")

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
