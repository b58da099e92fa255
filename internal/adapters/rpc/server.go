// Package rpc serves the ledger over JSON-RPC 2.0 on HTTP.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angganurf/wunderland-sol/internal/metrics"
	"github.com/angganurf/wunderland-sol/internal/platform/ratelimiter"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

const (
	DefaultAddr = "127.0.0.1:8899"

	tokenHeader         = "X-Ledger-RPC-Token"
	defaultMaxBodyBytes = 1 << 20
	shutdownTimeout     = 5 * time.Second
)

type Options struct {
	Addr              string
	Token             string
	RequireSignatures bool
	Limiter           *ratelimiter.MapLimiter
	Metrics           *metrics.Recorder
	Logger            *slog.Logger
	IdempotencyTTL    time.Duration
	IdempotencySize   int
	MaxBodyBytes      int64
	ReadHeaderTimeout time.Duration
	Clock             func() time.Time
}

type Server struct {
	httpServer        *http.Server
	service           LedgerService
	token             string
	requireSignatures bool
	limiter           *ratelimiter.MapLimiter
	metrics           *metrics.Recorder
	logger            *slog.Logger
	idempotency       *idempotencyCache
	maxBodyBytes      int64
	now               func() time.Time
	methods           map[string]handlerFunc
}

func NewServer(svc LedgerService, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           mux,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
		},
		service:           svc,
		token:             strings.TrimSpace(opts.Token),
		requireSignatures: opts.RequireSignatures,
		limiter:           opts.Limiter,
		metrics:           opts.Metrics,
		logger:            opts.Logger.With("component", "rpc"),
		idempotency:       newIdempotencyCache(opts.IdempotencySize, opts.IdempotencyTTL),
		maxBodyBytes:      opts.MaxBodyBytes,
		now:               opts.Clock,
	}
	s.methods = s.methodTable()
	if s.token == "" {
		s.logger.Warn("rpc token is not set; RPC auth disabled")
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/rpc", s.handleRPC)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("rpc listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
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
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// authorize checks the RPC token and returns it for rate limiting and
// idempotency scoping.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := extractToken(r)
	if s.token == "" {
		return token, true
	}
	if token != s.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return token, true
}

func extractToken(r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get(tokenHeader))
	if token != "" {
		return token
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return ""
}

// limitPrincipal charges one call to wallet's bucket, so a wallet is held to
// the same rate whichever token or address it arrives from.
func (s *Server) limitPrincipal(wallet models.Key) error {
	if allowed, wait := s.limiter.Check(ratelimiter.PrincipalKey(wallet), s.now()); !allowed {
		s.metrics.ObserveRateLimited()
		return rateLimitedError{retryAfter: wait}
	}
	return nil
}
