package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jdziat/funcgate/pkg/metrics"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":5000"

// DefaultCallTimeout bounds how long a request waits for its call.
const DefaultCallTimeout = 30 * time.Second

// Option configures a Server.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

type config struct {
	addr         string
	callTimeout  time.Duration
	maxBodyBytes int64
	maxInFlight  int
	rateLimit    RateLimitConfig
	metrics      *metrics.Metrics
	mcp          bool
	middleware   func(http.Handler) http.Handler
	logger       *slog.Logger
}

// RateLimitConfig configures per-client rate limiting. Clients are keyed by
// remote IP.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// WithAddr sets the listen address. Default: ":5000".
func WithAddr(addr string) Option {
	return optionFunc(func(c *config) {
		c.addr = addr
	})
}

// WithCallTimeout sets how long a request waits for its call before
// answering 504. The call itself is not interrupted. Default: 30s.
func WithCallTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.callTimeout = d
	})
}

// WithMaxBodyBytes caps request body size. Default: 1 MiB.
func WithMaxBodyBytes(n int64) Option {
	return optionFunc(func(c *config) {
		c.maxBodyBytes = n
	})
}

// WithMaxInFlight bounds concurrently executing calls. Default: 64.
func WithMaxInFlight(n int) Option {
	return optionFunc(func(c *config) {
		c.maxInFlight = n
	})
}

// WithRateLimit enables per-client rate limiting.
func WithRateLimit(rl RateLimitConfig) Option {
	return optionFunc(func(c *config) {
		c.rateLimit = rl
	})
}

// WithMetrics records request metrics and serves them on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return optionFunc(func(c *config) {
		c.metrics = m
	})
}

// WithMCP serves the gateway's functions as MCP tools on /mcp. Tool calls
// share the rate limit, in-flight slots and call timeout of /api.
func WithMCP() Option {
	return optionFunc(func(c *config) {
		c.mcp = true
	})
}

// WithMiddleware wraps the handler with middleware (auth, CORS, etc.).
func WithMiddleware(mw func(http.Handler) http.Handler) Option {
	return optionFunc(func(c *config) {
		c.middleware = mw
	})
}

// WithLogger sets the request logger. slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *config) {
		c.logger = l
	})
}
