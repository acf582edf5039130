package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"braintree-checkout-api/database"
	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
)

type Config struct {
	Database  database.DatabaseConfig
	Redis     RedisConfig
	Server    ServerConfig
	Session   SessionConfig
	JWT       JWTConfig
	Log       LogConfig
	Gateway   GatewayConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	URL string
}

type SessionConfig struct {
	Name   string
	Secret string
	MaxAge int
	Secure bool
}

type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

type LogConfig struct {
	Environment string
}

// GatewayConfig holds the Braintree defaults used when a store has no
// stored override.
type GatewayConfig struct {
	Environment       string
	MerchantID        string
	PublicKey         string
	PrivateKey        string
	MerchantAccountID string
}

// Credentials converts the defaults into gateway credentials.
func (g GatewayConfig) Credentials() models.GatewayCredentials {
	return models.GatewayCredentials{
		Environment:       g.Environment,
		MerchantID:        g.MerchantID,
		PublicKey:         g.PublicKey,
		PrivateKey:        g.PrivateKey,
		MerchantAccountID: g.MerchantAccountID,
	}
}

type RateLimitConfig struct {
	Enabled bool
	// TrustedProxies lists the IPs or CIDR ranges allowed to set
	// X-Forwarded-For. Empty means the peer address is always the client.
	TrustedProxies []string
}

// Load reads the process configuration from the environment, after loading
// a .env file when one exists.
func Load() *Config {
	envErr := godotenv.Load()

	cfg := &Config{
		Database: database.DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost:3306"),
			User:     getEnv("DB_USER", "root"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   getEnv("DB_NAME", "checkout"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "*")),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Session: SessionConfig{
			Name:   getEnv("SESSION_NAME", "checkout_session"),
			Secret: os.Getenv("SESSION_SECRET"),
			MaxAge: getEnvInt("SESSION_MAX_AGE", 86400),
			Secure: getEnvBool("SESSION_SECURE", true),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getEnv("JWT_ISSUER", "braintree-checkout-api"),
			TTL:    getEnvDuration("JWT_TTL", 8*time.Hour),
		},
		Log: LogConfig{
			Environment: getEnv("APP_ENV", "development"),
		},
		Gateway: GatewayConfig{
			Environment:       getEnv("BRAINTREE_ENVIRONMENT", "sandbox"),
			MerchantID:        os.Getenv("BRAINTREE_MERCHANT_ID"),
			PublicKey:         os.Getenv("BRAINTREE_PUBLIC_KEY"),
			PrivateKey:        os.Getenv("BRAINTREE_PRIVATE_KEY"),
			MerchantAccountID: os.Getenv("BRAINTREE_MERCHANT_ACCOUNT_ID"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),
		},
	}

	logger.Initialize(cfg.Log.Environment)
	if envErr != nil {
		logger.Log.Info("No .env file loaded, using process environment", zap.Error(envErr))
	}
	logger.Log.Info("Configuration loaded",
		zap.String("environment", cfg.Log.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("db_host", cfg.Database.Host),
		zap.String("braintree_environment", cfg.Gateway.Environment),
		zap.Bool("braintree_defaults", cfg.Gateway.MerchantID != ""))

	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
