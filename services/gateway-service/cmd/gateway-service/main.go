package main

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/kbrhealth/carebook/libs/auth"
	"github.com/kbrhealth/carebook/libs/config"
	"github.com/kbrhealth/carebook/libs/httpx"
	otelx "github.com/kbrhealth/carebook/libs/otel"
	"github.com/kbrhealth/carebook/libs/runtime"
)

func main() {
	config.LoadEnvFile()

	service := config.String("SERVICE_NAME", "gateway-service")
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

	mux := runtime.NewBaseMux()
	sessionSecret := config.String("SESSION_JWT_SECRET", "dev-secret")
	jwksURL := config.String("JWKS_URL", "")
	jwksTTL := config.Seconds("JWKS_CACHE_SECONDS", 300*time.Second)
	registerRoutes(mux, sessionSecret, jwksURL, jwksTTL)

	bodyLimit := int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))
	requestTimeout := config.Seconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second)
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)

	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           config.Seconds("CORS_MAX_AGE_SECONDS", 600*time.Second),
		}),
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "gateway")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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

func registerRoutes(mux *http.ServeMux, sessionSecret string, jwksURL string, jwksTTL time.Duration) {
	bookingURL := mustParseURL(config.String("BOOKING_URL", "http://booking-service:8083"))
	paymentsURL := mustParseURL(config.String("PAYMENTS_URL", "http://payments-service:8084"))
	dashboardURL := mustParseURL(config.String("DASHBOARD_URL", "http://dashboard-service:8085"))

	bookingProxy := httputil.NewSingleHostReverseProxy(bookingURL)
	paymentsProxy := httputil.NewSingleHostReverseProxy(paymentsURL)
	dashboardProxy := httputil.NewSingleHostReverseProxy(dashboardURL)
	otelTransport := otelhttp.NewTransport(http.DefaultTransport)
	bookingProxy.Transport = otelTransport
	paymentsProxy.Transport = otelTransport
	dashboardProxy.Transport = otelTransport

	var jwksClient *auth.JWKSClient
	if jwksURL != "" {
		jwksClient = auth.NewJWKSClient(jwksURL, jwksTTL)
	}

	registerProxy(mux, "/api/v1/appointments", requireSession(bookingProxy, sessionSecret, jwksClient))
	registerProxy(mux, "/api/v1/invoices", requireSession(bookingProxy, sessionSecret, jwksClient))
	registerProxy(mux, "/api/v1/slots", requireSession(bookingProxy, sessionSecret, jwksClient))
	registerProxy(mux, "/api/v1/logout", requireSession(bookingProxy, sessionSecret, jwksClient))
	// Stripe reaches the webhook without a session token; signature
	// verification is the auth.
	registerProxy(mux, "/api/v1/payments/webhook", paymentsProxy)
	registerProxy(mux, "/api/v1/dashboard", requireAdminKey(dashboardProxy, config.String("ADMIN_KEY_BCRYPT", "")))
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	mux.Handle(prefix, handler)
	mux.Handle(prefix+"/", handler)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// requireSession verifies the identity provider's session token and maps
// its claims onto the trusted X-Patient-* headers. Client-supplied values
// for those headers are always stripped first.
func requireSession(next http.Handler, sessionSecret string, jwksClient *auth.JWKSClient) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		var claims *auth.Claims
		var err error

		if jwksClient != nil {
			header, herr := auth.ParseHeader(token)
			if herr != nil {
				http.Error(w, "invalid token header", http.StatusUnauthorized)
				return
			}
			if header.Alg == "RS256" && header.Kid != "" {
				pub, kerr := jwksClient.Key(header.Kid)
				if kerr != nil {
					http.Error(w, "invalid token key", http.StatusUnauthorized)
					return
				}
				claims, err = auth.VerifyRS256(token, pub)
			} else {
				claims, err = auth.ParseAndVerifyHS256(token, sessionSecret)
			}
		} else {
			claims, err = auth.ParseAndVerifyHS256(token, sessionSecret)
		}
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		r.Header.Del("X-Patient-Id")
		r.Header.Del("X-Patient-Name")
		r.Header.Del("X-Patient-Email")
		r.Header.Del("X-Patient-Phone")
		r.Header.Set("X-Patient-Id", claims.Sub)
		r.Header.Set("X-Patient-Name", claims.Name)
		r.Header.Set("X-Patient-Email", claims.Email)
		r.Header.Set("X-Patient-Phone", claims.Phone)
		next.ServeHTTP(w, r)
	})
}

// requireAdminKey guards the ops-facing dashboard routes with a static key
// checked against a bcrypt hash from config. No hash configured means the
// routes are disabled outright.
func requireAdminKey(next http.Handler, keyHash string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(keyHash) == "" {
			http.Error(w, "dashboard access not configured", http.StatusServiceUnavailable)
			return
		}
		key := r.Header.Get("X-Admin-Key")
		if key == "" {
			http.Error(w, "missing admin key", http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
			http.Error(w, "invalid admin key", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
