package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kbrhealth/carebook/libs/config"
	"github.com/kbrhealth/carebook/libs/db"
	"github.com/kbrhealth/carebook/libs/httpx"
	"github.com/kbrhealth/carebook/libs/kafkax"
	otelx "github.com/kbrhealth/carebook/libs/otel"
	"github.com/kbrhealth/carebook/libs/runtime"
	"github.com/kbrhealth/carebook/services/dashboard-service/internal/aggregator"
	"github.com/kbrhealth/carebook/services/dashboard-service/internal/cache"
	"github.com/kbrhealth/carebook/services/dashboard-service/internal/feed"
	"github.com/kbrhealth/carebook/services/dashboard-service/internal/handlers"
	"github.com/kbrhealth/carebook/services/dashboard-service/internal/inbox"
	"github.com/kbrhealth/carebook/services/dashboard-service/internal/metrics"
)

func main() {
	config.LoadEnvFile()

	service := config.String("SERVICE_NAME", "dashboard-service")
	port, err := config.Port("PORT", "8085")
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
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: config.String("REDIS_ADDR", "localhost:6379")})
	defer rdb.Close()

	agg := aggregator.New(logger)
	feedMetrics := metrics.NewFeedMetrics(nil)
	snapshots := cache.NewSnapshotCache(rdb, logger, config.Seconds("SNAPSHOT_TTL_SECONDS", 10*time.Minute))
	agg.Subscribe(func(snap aggregator.Snapshot) {
		feedMetrics.ObserveSnapshot()
		// Redis fan-out happens off the aggregator lock.
		go snapshots.Publish(context.WithoutCancel(ctx), snap)
	})

	inboxRepo := inbox.NewRepository(pool)
	feedRepo := feed.NewRepository(pool)

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "dashboard-service")
	for _, topic := range []string{feed.TopicAppointments, feed.TopicPayments, feed.TopicDoctors, feed.TopicUsers} {
		sub := feed.NewSubscriber(logger, inboxRepo, feedRepo, agg, feedMetrics, feed.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		})
		if err := sub.SeedFromStore(ctx); err != nil {
			logger.Warn("feed seed failed; starting empty", "topic", topic, "err", err)
		}
		go sub.Run(ctx)
	}

	// todayAppointments tracks the calendar, not just feed traffic.
	c := cron.New()
	if _, err := c.AddFunc("0 0 * * *", agg.Recompute); err != nil {
		logger.Error("cron schedule failed", "err", err)
	}
	c.Start()
	defer c.Stop()

	metricsHandler := handlers.NewMetricsHandler(agg)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/dashboard/metrics", metricsHandler.Snapshot)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "dashboard")
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
