// Package ledgerd wires the ledger daemon: storage backend, ledger core,
// JSON-RPC transport and the metrics endpoint.
package ledgerd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angganurf/wunderland-sol/internal/adapters/rpc"
	"github.com/angganurf/wunderland-sol/internal/config"
	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/ledger"
	"github.com/angganurf/wunderland-sol/internal/metrics"
	"github.com/angganurf/wunderland-sol/internal/platform/logging"
	"github.com/angganurf/wunderland-sol/internal/platform/ratelimiter"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/internal/store/leveldbstore"
	"github.com/angganurf/wunderland-sol/internal/store/snapshotstore"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Store   *store.Store
	Ledger  *ledger.Ledger
	Metrics *metrics.Recorder
	RPC     *rpc.Server

	metricsServer *http.Server
}

// OpenBackend opens the storage backend named by cfg.
func OpenBackend(cfg config.StorageConfig) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return store.NewMemoryBackend(), nil
	case config.BackendLevelDB:
		return leveldbstore.Open(cfg.Path, cfg.CacheSize)
	case config.BackendSnapshot:
		return snapshotstore.Open(cfg.Path, cfg.Secret)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Build opens storage and assembles every component. Logs go to logOut.
func Build(cfg config.Config, logOut io.Writer) (*App, error) {
	logger, err := logging.New(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	backend, err := OpenBackend(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	st := store.New(backend)
	if err := st.Audit(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("audit storage: %w", err)
	}

	rec := metrics.New()
	l, err := ledger.New(st, ledger.Options{
		Program:   cfg.Ledger.ProgramID,
		Policy:    cfg.Ledger.Policy,
		Authority: contracts.StaticAuthority{Authority: cfg.Ledger.UpgradeAuthority},
		Logger:    logger,
		Metrics:   rec,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var limiter *ratelimiter.MapLimiter
	if cfg.RPC.RateLimit.Enabled {
		limiter = ratelimiter.New(cfg.RPC.RateLimit.RPS, cfg.RPC.RateLimit.Burst, 10*time.Minute)
	}
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   st,
		Ledger:  l,
		Metrics: rec,
		RPC: rpc.NewServer(l, rpc.Options{
			Addr:              cfg.RPC.Addr,
			Token:             cfg.RPC.Token,
			RequireSignatures: cfg.RPC.RequireSignatures,
			Limiter:           limiter,
			Metrics:           rec,
			Logger:            logger,
			IdempotencyTTL:    cfg.RPC.IdempotencyTTL,
			IdempotencySize:   cfg.RPC.IdempotencySize,
			MaxBodyBytes:      cfg.RPC.MaxBodyBytes,
			ReadHeaderTimeout: cfg.RPC.ReadHeaderTimeout,
		}),
	}
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rec.Handler())
		app.metricsServer = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.RPC.ReadHeaderTimeout,
		}
	}
	return app, nil
}

// Run serves RPC and metrics until ctx is canceled or one of them fails, then
// closes storage.
func (a *App) Run(ctx context.Context) error {
	slot, err := a.Store.Slot()
	if err != nil {
		return err
	}
	a.Logger.Info("ledger daemon starting",
		"program", a.Ledger.Program().String(),
		"backend", a.Config.Storage.Backend,
		"slot", slot,
		"dev_faucet", a.Config.Ledger.Policy.DevFaucet,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.RPC.Run(gctx)
	})
	if a.metricsServer != nil {
		g.Go(func() error {
			return serveMetrics(gctx, a.metricsServer, a.Logger)
		})
	}
	runErr := g.Wait()
	if err := a.Store.Close(); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("close storage: %w", err))
	}
	a.Logger.Info("ledger daemon stopped")
	return runErr
}

func serveMetrics(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", srv.Addr)
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
