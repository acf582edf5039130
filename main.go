package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"braintree-checkout-api/config"
	"braintree-checkout-api/database"
	"braintree-checkout-api/handlers"
	"braintree-checkout-api/logger"
	"braintree-checkout-api/middleware"
	"braintree-checkout-api/models"
	"braintree-checkout-api/services/auth"
	"braintree-checkout-api/services/express"
	"braintree-checkout-api/services/payment"
	"braintree-checkout-api/services/payment/braintree"
)

// redisPinger adapts the redis client to the health check.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	cfg := config.Load()
	defer logger.Sync()

	if cfg.Session.Secret == "" || cfg.JWT.Secret == "" {
		logger.Log.Fatal("SESSION_SECRET and JWT_SECRET must be set")
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Log.Info("Successfully connected to database")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Log.Fatal("Invalid REDIS_URL", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Log.Warn("Redis not reachable at startup, rate limiting will fail open", zap.Error(err))
	} else {
		logger.Log.Info("Successfully connected to Redis")
	}
	pingCancel()

	// One transport shared by every store's gateway client.
	gatewayHTTP := &http.Client{Timeout: braintree.RequestTimeout}
	newGateway := func(credentials models.GatewayCredentials) payment.Gateway {
		return braintree.NewClient(credentials, braintree.WithHTTPClient(gatewayHTTP))
	}

	resolver := config.NewResolver(db, cfg.Gateway)
	paymentService := payment.NewPaymentService(resolver, db, newGateway)
	expressService := express.NewService(resolver, db, func(ctx context.Context, checkout *payment.CheckoutContext) (express.Charger, error) {
		method, err := paymentService.PayPal(ctx, checkout)
		if err != nil {
			return nil, err
		}
		return method, nil
	})
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL, db)
	sessionManager := handlers.NewSessionManager(cfg.Session)

	checkoutHandler := handlers.NewCheckoutHandler(db, paymentService, jwtService, sessionManager)
	expressHandler := handlers.NewExpressHandler(expressService, db, sessionManager)
	adminHandler := handlers.NewAdminHandler(jwtService, db, paymentService)
	healthHandler := handlers.NewHealthHandler(db, redisPinger{client: redisClient})

	router := mux.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestLogger)
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.SecurityHeaders)
	if cfg.RateLimit.Enabled {
		proxies, err := middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
		if err != nil {
			logger.Log.Fatal("Invalid TRUSTED_PROXIES", zap.Error(err))
		}
		limiter := middleware.NewRateLimiter(middleware.NewRedisWindow(redisClient), proxies)
		router.Use(limiter.Middleware())
	}

	api := router.PathPrefix("/api").Subrouter()

	checkout := api.PathPrefix("/checkout").Subrouter()
	checkout.HandleFunc("/session", checkoutHandler.Session).Methods("GET", "POST", "OPTIONS")
	checkout.HandleFunc("/quote-total", checkoutHandler.QuoteTotal).Methods("GET", "OPTIONS")
	checkout.HandleFunc("/tokenize-card", checkoutHandler.TokenizeCard).Methods("POST", "OPTIONS")
	checkout.HandleFunc("/client-token", checkoutHandler.ClientToken).Methods("GET", "OPTIONS")
	checkout.HandleFunc("/three-d-secure", checkoutHandler.ThreeDSecure).Methods("GET", "OPTIONS")
	checkout.HandleFunc("/orders/{id:[0-9]+}/authorize", checkoutHandler.Authorize).Methods("POST", "OPTIONS")
	checkout.HandleFunc("/orders/{id:[0-9]+}/capture", checkoutHandler.Capture).Methods("POST", "OPTIONS")

	expressRoutes := api.PathPrefix("/express").Subrouter()
	expressRoutes.HandleFunc("/button", expressHandler.Button).Methods("GET", "OPTIONS")
	expressRoutes.HandleFunc("/authorization", expressHandler.Authorization).Methods("POST", "OPTIONS")
	expressRoutes.HandleFunc("/shipping", expressHandler.Shipping).Methods("GET", "POST", "OPTIONS")
	expressRoutes.HandleFunc("/save-shipping", expressHandler.SaveShipping).Methods("POST", "OPTIONS")
	expressRoutes.HandleFunc("/process", expressHandler.Process).Methods("POST", "OPTIONS")
	expressRoutes.HandleFunc("/error", expressHandler.Error).Methods("GET", "OPTIONS")

	api.HandleFunc("/admin/login", adminHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/admin/refresh", adminHandler.Refresh).Methods("POST", "OPTIONS")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminAuth(jwtService))
	admin.HandleFunc("/orders/{id:[0-9]+}/payment-info", adminHandler.PaymentInfo).Methods("GET")
	admin.HandleFunc("/orders/{id:[0-9]+}/payment", adminHandler.Pay).Methods("POST")
	admin.HandleFunc("/orders/{id:[0-9]+}/capture", adminHandler.Capture).Methods("POST")
	admin.HandleFunc("/stores/{id:[0-9]+}/credentials", adminHandler.Credentials).Methods("GET")

	api.HandleFunc("/health", healthHandler.Health).Methods("GET")

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Log.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Log.Info("Shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Log.Info("Server exited properly")
}
