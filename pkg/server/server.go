package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/jdziat/funcgate/pkg/callctx"
	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/envelope"
	"github.com/jdziat/funcgate/pkg/gateway"
	"github.com/jdziat/funcgate/pkg/mcpbridge"
	"github.com/jdziat/funcgate/pkg/security"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const (
	defaultMaxInFlight = 64
	maxRequestIDLength = 64
	shutdownTimeout    = 5 * time.Second
)

// Server serves a Gateway over HTTP.
type Server struct {
	gateway    *gateway.Gateway
	cfg        *config
	limiter    *rateLimiter
	slots      chan struct{}
	handler    http.Handler
	httpServer *http.Server
}

// New creates a Server. The gateway's registry must already be initialized.
func New(gw *gateway.Gateway, opts ...Option) (*Server, error) {
	if gw == nil || !gw.Ready() {
		return nil, core.ErrRegistryNotReady
	}

	cfg := &config{
		addr:         DefaultAddr,
		callTimeout:  DefaultCallTimeout,
		maxBodyBytes: security.MaxRequestBodySize,
		maxInFlight:  defaultMaxInFlight,
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	cfg.maxBodyBytes = security.ClampBodySize(cfg.maxBodyBytes)
	cfg.maxInFlight = security.ClampConcurrency(cfg.maxInFlight)
	if cfg.callTimeout <= 0 {
		cfg.callTimeout = DefaultCallTimeout
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	s := &Server{
		gateway: gw,
		cfg:     cfg,
		limiter: newRateLimiter(cfg.rateLimit),
		slots:   make(chan struct{}, cfg.maxInFlight),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/docs", s.handleDocs)
	mux.HandleFunc("/api/{name}", s.handleCall)
	mux.HandleFunc("/healthz", s.handleHealth)
	if cfg.metrics != nil {
		mux.Handle("GET /metrics", cfg.metrics.Handler())
	}
	if cfg.mcp {
		mux.Handle("/mcp", s.rateLimited(mcpbridge.Handler(gw, mcpbridge.WithCaller(s))))
	}

	var handler http.Handler = mux
	if cfg.middleware != nil {
		handler = cfg.middleware(handler)
	}
	// Allow HTTP/2 without TLS for clients that speak it.
	s.handler = h2c.NewHandler(handler, &http2.Server{})

	s.httpServer = &http.Server{
		Addr:              cfg.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	errCh := make(chan error, 1)
	go func() {
		s.cfg.logger.Info("http server listening", "addr", s.httpServer.Addr)
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/api/docs", http.StatusFound)
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"endpoints": s.gateway.Functions()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.gateway.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.admit(w, r) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	params, err := core.ParseParams(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	info := core.CallInfo{
		RequestID: requestID(r),
		Function:  name,
		Transport: "http",
	}
	ctx := callctx.WithCall(r.Context(), info)
	info, _ = callctx.CallFromContext(ctx)
	w.Header().Set(RequestIDHeader, info.RequestID)

	started := time.Now()
	env, status := s.dispatch(ctx, name, params)
	s.cfg.logger.Info("api request",
		"request_id", info.RequestID,
		"function", name,
		"convention", params.Convention().String(),
		"outcome", string(env.Outcome()),
		"status", status,
		"latency_ms", time.Since(started).Milliseconds(),
	)
	writeJSON(w, status, env)
}

// admit applies the per-client rate limit, answering 429 when it is exceeded.
func (s *Server) admit(w http.ResponseWriter, r *http.Request) bool {
	if s.limiter.allow(rateLimitKey(r), time.Now()) {
		return true
	}
	if s.cfg.metrics != nil {
		s.cfg.metrics.RateLimited()
	}
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	return false
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.admit(w, r) {
			next.ServeHTTP(w, r)
		}
	})
}

// Call runs a call under the same in-flight slots, call timeout and metrics
// as /api. A busy server or an expired timeout yields a failure envelope.
func (s *Server) Call(ctx context.Context, name string, params core.ParamSet) envelope.Envelope {
	env, _ := s.dispatch(ctx, name, params)
	return env
}

// dispatch runs the call on its own goroutine so that a slow function cannot
// hold the response past the call timeout. The function keeps its slot until
// it returns.
func (s *Server) dispatch(ctx context.Context, name string, params core.ParamSet) (envelope.Envelope, int) {
	timer := time.NewTimer(s.cfg.callTimeout)
	defer timer.Stop()

	select {
	case s.slots <- struct{}{}:
	case <-timer.C:
		return envelope.Failure("server busy"), http.StatusServiceUnavailable
	case <-ctx.Done():
		return envelope.Failure("request cancelled"), http.StatusServiceUnavailable
	}

	var done func()
	if s.cfg.metrics != nil {
		done = s.cfg.metrics.CallStarted()
	}

	result := make(chan envelope.Envelope, 1)
	callCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			<-s.slots
			if done != nil {
				done()
			}
		}()
		result <- s.gateway.Call(callCtx, name, params)
	}()

	select {
	case env := <-result:
		return env, http.StatusOK
	case <-timer.C:
		if s.cfg.metrics != nil {
			s.cfg.metrics.TimedOut()
		}
		err := fmt.Errorf("call to %q timed out after %s: %w", name, s.cfg.callTimeout, context.DeadlineExceeded)
		return envelope.Build(nil, err, nil), http.StatusGatewayTimeout
	}
}

// requestID returns a caller supplied request id, or "" to have one
// generated. Oversized or non-printable ids are ignored.
func requestID(r *http.Request) string {
	id := r.Header.Get(RequestIDHeader)
	if id == "" || len(id) > maxRequestIDLength {
		return ""
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return ""
		}
	}
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(envelope.Failure("failed to encode response"))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope.Failure(msg))
}
