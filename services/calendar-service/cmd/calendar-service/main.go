package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/slotcal/libs/auth"
	"github.com/md-rashed-zaman/slotcal/libs/config"
	"github.com/md-rashed-zaman/slotcal/libs/db"
	"github.com/md-rashed-zaman/slotcal/libs/grpcx"
	"github.com/md-rashed-zaman/slotcal/libs/httpx"
	"github.com/md-rashed-zaman/slotcal/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotcal/libs/otel"
	"github.com/md-rashed-zaman/slotcal/libs/runtime"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/availability"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/booking"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/civil"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/handlers"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/notify"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/outbox"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/reminders"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/schedule"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/internal/storage"
	"github.com/md-rashed-zaman/slotcal/services/calendar-service/migrations"
)

// intEnv reads a bounded integer, warning when the value is unusable.
func intEnv(logger *slog.Logger, key string, fallback, min, max int) int {
	v, ok := config.Int(key, fallback, min, max)
	if !ok {
		logger.Warn("invalid config value; using default", "key", key, "default", fallback)
	}
	return v
}

func main() {
	_ = config.LoadDotEnv()

	service := config.String("SERVICE_NAME", "calendar-service")
	port, err := config.Port("PORT", "8090")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

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
	pool, err := db.Open(ctx, dbURL, db.PoolConfig{
		MaxConns: int32(intEnv(logger, "DB_MAX_CONNS", 10, 1, 200)),
		MinConns: int32(intEnv(logger, "DB_MIN_CONNS", 1, 0, 200)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("MIGRATE_ON_START", true) {
		if err := migrations.Apply(ctx, pool); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
	}

	timezone := config.String("TIMEZONE", "Europe/Sofia")
	appts := storage.NewAppointmentRepository(pool)
	schedules := storage.NewScheduleRepository(pool)
	if path := strings.TrimSpace(config.String("SCHEDULE_FILE", "")); path != "" {
		ws, err := schedule.LoadFile(path)
		if err != nil {
			logger.Error("schedule file load failed", "err", err, "path", path)
			panic(err)
		}
		schedules = schedules.WithStatic(ws)
		logger.Info("working schedule pinned from file", "path", path)
	}

	defaultDuration := intEnv(logger, "DEFAULT_DURATION_MINUTES", 120, 1, 24*60)
	bounds := handlers.DurationBounds{
		Min:     intEnv(logger, "DURATION_MIN_MINUTES", 15, 1, 24*60),
		Max:     intEnv(logger, "DURATION_MAX_MINUTES", 480, 1, 24*60),
		Default: defaultDuration,
	}
	engine := availability.NewEngine(schedules, appts, availability.Config{
		Timezone:        timezone,
		Step:            time.Duration(intEnv(logger, "SLOT_STEP_MINUTES", 30, 1, 24*60)) * time.Minute,
		Spacing:         time.Duration(intEnv(logger, "MIN_START_SPACING_MINUTES", 120, 0, 24*60)) * time.Minute,
		DefaultDuration: time.Duration(defaultDuration) * time.Minute,
		MaxDuration:     time.Duration(bounds.Max) * time.Minute,
		HidePastSlots:   config.Bool("HIDE_PAST_SLOTS", true),
	})

	brokers := strings.TrimSpace(config.String("KAFKA_BROKERS", ""))
	var kafkaWriter *kafka.Writer
	if brokers != "" {
		kafkaWriter = notify.NewKafkaWriter(brokers)
		defer func() { _ = kafkaWriter.Close() }()
	}

	outboxRepo := outbox.NewRepository()
	bookings := booking.NewService(appts, engine, outboxRepo, logger)

	var outboxWriter outbox.MessageWriter
	if kafkaWriter != nil {
		outboxWriter = kafkaWriter
	}
	publisher := outbox.NewPublisher(pool, outboxRepo, outboxWriter, logger, outbox.PublisherConfig{})
	go publisher.Run(ctx)

	dispatcher := reminders.NewDispatcher(appts, buildNotifier(logger, kafkaWriter),
		reminders.NewSwitch(config.Bool("DISPATCHER_ENABLED", true)), logger, reminders.DispatcherConfig{
			BatchLimit:     intEnv(logger, "DISPATCHER_BATCH_LIMIT", 100, 1, 10000),
			SendTimeout:    time.Duration(intEnv(logger, "DISPATCHER_SEND_TIMEOUT_SECONDS", 10, 1, 300)) * time.Second,
			SendsPerSecond: float64(intEnv(logger, "DISPATCHER_SENDS_PER_SECOND", 0, 0, 1000)),
			Location:       civil.LoadLocation(timezone, "Europe/Sofia"),
		})
	runner, err := reminders.NewRunner(dispatcher, config.String("DISPATCHER_TICK", "@every 5m"), logger)
	if err != nil {
		logger.Error("dispatcher schedule invalid", "err", err)
		panic(err)
	}
	go runner.Run(ctx)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	limitPerMinute := intEnv(logger, "RATE_LIMIT_PER_MINUTE", 120, 1, 100000)
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       intEnv(logger, "REDIS_DB", 0, 0, 15),
		})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:calendar"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rateLimitMW = httpx.NewRateLimiter(limitPerMinute).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	guard := auth.Guard{
		Secret:     config.String("JWT_SECRET", "dev-secret"),
		APIKeyHash: config.String("DISPATCH_TRIGGER_KEY_HASH", ""),
	}
	adminGuard := auth.Guard{Secret: guard.Secret}
	requireAdmin := func(h http.Handler) http.Handler { return adminGuard.Require(h, "owner", "admin") }
	requireTrigger := func(h http.Handler) http.Handler { return guard.Require(h, "owner", "admin") }

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.Register(mux, handlers.Routes{
		Availability: handlers.NewAvailabilityHandler(engine, bounds, logger),
		Appointments: handlers.NewAppointmentHandler(bookings, appts, engine, bounds, logger),
		Schedule:     handlers.NewScheduleHandler(schedules, timezone, logger),
		Reminders:    handlers.NewReminderHandler(dispatcher, logger),
		ICS:          handlers.NewICSHandler(appts, engine, logger),
	}, rateLimitMW, requireAdmin, requireTrigger)

	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: config.List("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,Idempotency-Key"),
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(time.Duration(intEnv(logger, "REQUEST_TIMEOUT_SECONDS", 15, 1, 300))*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "calendar")

	if grpcPort := strings.TrimSpace(config.String("GRPC_PORT", "9090")); grpcPort != "" {
		grpcSrv := grpcx.NewServer(logger)
		grpcSrv.SetServing(true, service)
		go func() {
			if err := grpcSrv.Serve(ctx, ":"+grpcPort); err != nil {
				logger.Error("grpc server error", "err", err)
			}
		}()
	}

	runtime.ServeHTTP(ctx, &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}, logger, 10*time.Second)
}
