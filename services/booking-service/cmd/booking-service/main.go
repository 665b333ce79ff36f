package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kbrhealth/carebook/libs/config"
	"github.com/kbrhealth/carebook/libs/db"
	"github.com/kbrhealth/carebook/libs/httpx"
	"github.com/kbrhealth/carebook/libs/kafkax"
	otelx "github.com/kbrhealth/carebook/libs/otel"
	"github.com/kbrhealth/carebook/libs/outbox"
	"github.com/kbrhealth/carebook/libs/runtime"
	"github.com/kbrhealth/carebook/services/booking-service/internal/decision"
	"github.com/kbrhealth/carebook/services/booking-service/internal/handlers"
	"github.com/kbrhealth/carebook/services/booking-service/internal/invoice"
	"github.com/kbrhealth/carebook/services/booking-service/internal/metrics"
	"github.com/kbrhealth/carebook/services/booking-service/internal/session"
	"github.com/kbrhealth/carebook/services/booking-service/internal/storage"
)

func main() {
	config.LoadEnvFile()

	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	outboxRepo := outbox.NewRepository(pool)
	repo := storage.NewRepository(pool, outboxRepo)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	decider, err := decision.NewProvider(config.String("DECISION_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("decision provider init failed; conflicts will prompt the caller", "err", err)
		decider = nil
	}

	sessions := session.NewRegistry(
		config.Int("TOKEN_BASELINE", 1),
		float64(config.Int("BASE_CONSULTATION_FEE", invoice.DefaultBaseFee)),
		repo,
		decider,
	)
	bookingMetrics := metrics.NewBookingMetrics(nil)
	bookingHandler := handlers.NewBookingHandler(sessions, logger, bookingMetrics)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/appointments/book", bookingHandler.Book)
	mux.HandleFunc("/api/v1/appointments/resolve", bookingHandler.Resolve)
	mux.HandleFunc("/api/v1/appointments/dismiss", bookingHandler.Dismiss)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/appointments/reschedule", bookingHandler.Reschedule)
	mux.HandleFunc("/api/v1/appointments", bookingHandler.List)
	mux.HandleFunc("/api/v1/invoices", bookingHandler.Invoices)
	mux.HandleFunc("/api/v1/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/logout", bookingHandler.Logout)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
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
