// Package app assembles the engine from configuration and runs it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chirpy-labs/chirpy-push/internal/config"
	"github.com/chirpy-labs/chirpy-push/internal/geoip"
	"github.com/chirpy-labs/chirpy-push/internal/metrics"
	"github.com/chirpy-labs/chirpy-push/internal/pushclient"
	"github.com/chirpy-labs/chirpy-push/internal/server"
	"github.com/chirpy-labs/chirpy-push/internal/service"
	"github.com/chirpy-labs/chirpy-push/internal/storage"
	"github.com/chirpy-labs/chirpy-push/internal/storage/bolt"
	"github.com/chirpy-labs/chirpy-push/internal/storage/memory"
)

// App owns every long-lived component.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *memory.Store
	snapshots storage.Snapshotter
	redis     *redis.Client
	metrics   *metrics.Metrics
	server    *server.Server
}

// New wires the engine and restores the last snapshot, if any.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		store:   memory.New(),
		metrics: metrics.New(),
	}

	if path := strings.TrimSpace(cfg.Storage.SnapshotPath); path != "" {
		snaps, err := bolt.New(path)
		if err != nil {
			return nil, fmt.Errorf("open snapshot file: %w", err)
		}
		a.snapshots = snaps
		if err := a.restore(context.Background()); err != nil {
			_ = snaps.Close()
			return nil, err
		}
	}

	transport, err := a.pushTransport()
	if err != nil {
		a.Close()
		return nil, err
	}
	geo, err := a.geoLocator()
	if err != nil {
		a.Close()
		return nil, err
	}

	auth := service.NewAuthService(cfg, a.store)
	if auth.EphemeralSecret() {
		logger.Warn("auth.jwt_secret is empty or a sample value, using a random secret; sessions will not survive a restart")
	}
	guard := service.NewGuard(a.store, auth)
	dispatcher, err := service.NewDispatcher(a.store, guard, transport, service.DispatcherOptions{
		Workers:        cfg.Push.Workers,
		AttemptTimeout: cfg.Push.AttemptTimeout,
		DefaultIcon:    cfg.Push.DefaultIcon,
		DefaultURL:     cfg.Push.DefaultURL,
	}, a.metrics, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	svc := server.Services{
		Auth:           auth,
		Accounts:       service.NewAccountService(a.store, guard, transport.PublicKey()),
		Websites:       service.NewWebsiteService(a.store, guard),
		Subscribers:    service.NewSubscriberService(a.store, guard, geo, cfg.Geo.Timeout, a.metrics, logger),
		Segments:       service.NewSegmentService(a.store, guard),
		Campaigns:      service.NewCampaignService(a.store, guard),
		Dispatcher:     dispatcher,
		Clicks:         service.NewClickService(a.store, a.metrics),
		Analytics:      service.NewAnalyticsService(a.store, guard),
		Admin:          service.NewAdminService(a.store),
		VAPIDPublicKey: transport.PublicKey(),
	}
	a.server = server.New(cfg, svc, a.metrics, logger)
	return a, nil
}

// Run serves HTTP until ctx is cancelled, saving snapshots periodically and
// once more on the way out.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.cfg.HTTP.Addr)
		errCh <- a.server.Start()
	}()

	var tick <-chan time.Time
	if a.snapshots != nil && a.cfg.Storage.SnapshotInterval > 0 {
		ticker := time.NewTicker(a.cfg.Storage.SnapshotInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-errCh:
			runErr = fmt.Errorf("server stopped: %w", err)
			break loop
		case <-tick:
			if err := a.Save(ctx); err != nil {
				a.logger.Error("snapshot failed", "error", err)
			}
		}
	}

	a.logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.WriteTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown error", "error", err)
	}
	if err := a.Save(shutdownCtx); err != nil {
		a.logger.Error("final snapshot failed", "error", err)
	}
	a.Close()
	return runErr
}

// Save writes the current store contents to the snapshot file.
func (a *App) Save(ctx context.Context) error {
	if a.snapshots == nil {
		return nil
	}
	snap, err := a.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := a.snapshots.Save(ctx, snap); err != nil {
		return err
	}
	a.logger.Debug("snapshot saved",
		"accounts", len(snap.Accounts),
		"subscribers", len(snap.Subscribers),
		"campaigns", len(snap.Campaigns),
	)
	return nil
}

// Close releases the snapshot file and cache connection.
func (a *App) Close() {
	if a.snapshots != nil {
		if err := a.snapshots.Close(); err != nil {
			a.logger.Warn("close snapshot file", "error", err)
		}
		a.snapshots = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
}

func (a *App) restore(ctx context.Context) error {
	snap, err := a.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := a.store.Restore(ctx, snap); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	a.logger.Info("snapshot restored",
		"accounts", len(snap.Accounts),
		"websites", len(snap.Websites),
		"subscribers", len(snap.Subscribers),
		"campaigns", len(snap.Campaigns),
	)
	return nil
}

func (a *App) pushTransport() (*pushclient.WebPush, error) {
	pub, priv := a.cfg.Push.VAPIDPublicKey, a.cfg.Push.VAPIDPrivateKey
	if pub == "" || priv == "" {
		var err error
		pub, priv, err = pushclient.GenerateVAPIDKeys()
		if err != nil {
			return nil, fmt.Errorf("generate vapid keys: %w", err)
		}
		a.logger.Warn("no VAPID keys configured, using ephemeral keys; subscriptions will not survive a restart")
	}
	return pushclient.New(pushclient.Options{
		VAPIDPublicKey:  pub,
		VAPIDPrivateKey: priv,
		Subject:         a.cfg.Push.Subject,
		TTL:             a.cfg.Push.TTL,
		Timeout:         a.cfg.Push.AttemptTimeout,
	})
}

func (a *App) geoLocator() (service.GeoLocator, error) {
	if !a.cfg.Geo.Enabled {
		return nil, nil
	}
	if addr := strings.TrimSpace(a.cfg.Geo.RedisAddr); addr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: addr})
	}
	client, err := geoip.New(a.cfg.Geo.BaseURL, a.cfg.Geo.Timeout, a.redis, a.cfg.Geo.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("init geo client: %w", err)
	}
	return client, nil
}
