package middleware

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"braintree-checkout-api/apperrors"
	"braintree-checkout-api/logger"
)

// RateLimitConfig is the budget for one class of endpoints.
type RateLimitConfig struct {
	Name     string
	Requests int
	Window   time.Duration
	Message  string
}

var (
	paymentLimit = RateLimitConfig{
		Name:     "payment",
		Requests: 10,
		Window:   10 * time.Minute,
		Message:  "Too many payment attempts. Please wait a few minutes and try again.",
	}
	expressLimit = RateLimitConfig{
		Name:     "express",
		Requests: 30,
		Window:   5 * time.Minute,
		Message:  "Too many express checkout requests. Please slow down.",
	}
	loginLimit = RateLimitConfig{
		Name:     "login",
		Requests: 5,
		Window:   15 * time.Minute,
		Message:  "Too many login attempts. Please try again in 15 minutes.",
	}
	defaultLimit = RateLimitConfig{
		Name:     "default",
		Requests: 120,
		Window:   time.Minute,
		Message:  "Rate limit exceeded. Please slow down your requests.",
	}
)

// ZADD members are uuids so requests landing in the same second all count.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local window_start = tonumber(ARGV[1])
	local limit = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local member = ARGV[4]
	local ttl = tonumber(ARGV[5])

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

	local current = redis.call('ZCARD', key)
	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('EXPIRE', key, ttl)
		return {1, limit - current - 1}
	end
	return {0, 0}
`)

// WindowCounter records a hit against key and reports whether it fits the
// budget.
type WindowCounter interface {
	Allow(ctx context.Context, key string, cfg RateLimitConfig) (allowed bool, remaining int, err error)
}

// RedisWindow is a sliding-window counter kept in a Redis sorted set.
type RedisWindow struct {
	client redis.Scripter
	now    func() time.Time
}

func NewRedisWindow(client redis.Scripter) *RedisWindow {
	return &RedisWindow{client: client, now: time.Now}
}

func (rw *RedisWindow) Allow(ctx context.Context, key string, cfg RateLimitConfig) (bool, int, error) {
	now := rw.now()
	windowStart := now.Add(-cfg.Window)
	ttl := int64(cfg.Window.Seconds()) + 1

	result, err := slidingWindow.Run(ctx, rw.client, []string{key},
		windowStart.UnixMilli(), cfg.Requests, now.UnixMilli(), uuid.NewString(), ttl).Result()
	if err != nil {
		return false, 0, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, errors.New("unexpected redis result format")
	}
	allowed, ok1 := values[0].(int64)
	remaining, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, errors.New("failed to parse redis result")
	}
	return allowed == 1, int(remaining), nil
}

// TrustedProxies are the peers whose forwarding headers name the client.
type TrustedProxies []*net.IPNet

// ParseTrustedProxies accepts IP addresses and CIDR ranges.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	proxies := make(TrustedProxies, 0, len(entries))
	for _, entry := range entries {
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 8 * net.IPv4len
			}
			proxies = append(proxies, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}

		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		proxies = append(proxies, network)
	}
	return proxies, nil
}

func (t TrustedProxies) trusts(addr string) bool {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil {
		return false
	}
	for _, network := range t {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP is the peer address, unless the peer is a trusted proxy. Then
// the nearest untrusted X-Forwarded-For hop is the client, falling back to
// X-Real-IP and CF-Connecting-IP.
func (t TrustedProxies) ClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !t.trusts(peer) {
		return peer
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !t.trusts(hop) {
				return hop
			}
		}
		if first := strings.TrimSpace(hops[0]); first != "" {
			return first
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	return peer
}

type RateLimiter struct {
	counter WindowCounter
	proxies TrustedProxies
}

// NewRateLimiter keys budgets by client address. Forwarding headers are only
// read from the given proxies.
func NewRateLimiter(counter WindowCounter, proxies TrustedProxies) *RateLimiter {
	return &RateLimiter{counter: counter, proxies: proxies}
}

// Middleware enforces per-client budgets. Counter failures let the request
// through.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			cfg := configForPath(r.URL.Path)
			key := rateLimitKey(rl.proxies.ClientIP(r), r.URL.Path, cfg)

			allowed, remaining, err := rl.counter.Allow(r.Context(), key, cfg)
			if err != nil {
				logger.Error(r.Context(), "Rate limit check failed", err, zap.String("key", key))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				logger.Warn(r.Context(), "Rate limit exceeded",
					zap.String("key", key),
					zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				apperrors.HandleError(w, apperrors.New(http.StatusTooManyRequests, cfg.Message, nil))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func configForPath(path string) RateLimitConfig {
	switch {
	case path == "/api/admin/login":
		return loginLimit
	case strings.HasPrefix(path, "/api/checkout/orders/"),
		strings.HasPrefix(path, "/api/admin/orders/") && strings.HasSuffix(path, "/payment"),
		strings.HasPrefix(path, "/api/admin/orders/") && strings.HasSuffix(path, "/capture"),
		path == "/api/express/process":
		return paymentLimit
	case strings.HasPrefix(path, "/api/express/"):
		return expressLimit
	}
	return defaultLimit
}

func rateLimitKey(ip, path string, cfg RateLimitConfig) string {
	if cfg.Name == defaultLimit.Name {
		return fmt.Sprintf("rate_limit:%s:%s:%s", cfg.Name, ip, path)
	}
	return fmt.Sprintf("rate_limit:%s:%s", cfg.Name, ip)
}

// clientIP is the connection peer, used in log fields.
func clientIP(r *http.Request) string {
	return TrustedProxies(nil).ClientIP(r)
}
