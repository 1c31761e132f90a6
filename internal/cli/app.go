package cli

import (
	"context"
	"crypto/rsa"
	"fmt"
	"time"

	"cashflow/internal/backend"
	"cashflow/internal/cache"
	"cashflow/internal/config"
	"cashflow/internal/keyregistry"
	"cashflow/internal/log"
	"cashflow/internal/secrets"
	"cashflow/internal/security"
	"cashflow/internal/services"
	"cashflow/internal/signature"
	"cashflow/internal/storage"
)

// App is the wiring shared by the commands.
type App struct {
	Repo     *storage.SQLiteRepository
	Keys     *secrets.Store
	Registry *keyregistry.Registry
	Signer   *signature.Signer
	Reports  *services.ReportService
	Caches   *cache.Manager
}

// NewApp opens storage, loads the signing keys, reconciles them with the
// stored key history and builds the report service. Security events go to
// alerter.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger, alerter security.Alerter) (*App, error) {
	keys, err := secrets.Load(secrets.Config{
		ReportKeyID:   cfg.ReportSignKeyID,
		ReportKeyFile: cfg.ReportSignKeyFile,
		JWTKeyID:      cfg.JWTSignKeyID,
		JWTKeyFile:    cfg.JWTSignKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("load signing keys: %w", err)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	caches := cache.NewManager(logger)
	keyCache := cache.NewLRUCache[*rsa.PublicKey](cfg.KeyCacheSize, cfg.KeyCacheTTL)
	caches.Register(keyCache)

	registry := keyregistry.New(repo, alerter, keyCache, logger)
	if err := registry.Reconcile(ctx, keys.ActiveKeys(), time.Now()); err != nil {
		repo.Close()
		return nil, fmt.Errorf("reconcile public keys: %w", err)
	}

	signer, err := signature.NewSigner(keys.ReportSigningKey(), registry)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("create signer: %w", err)
	}

	feedCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		repo.Close()
		return nil, err
	}
	src, err := backend.NewFactory(logger.Logger).CreateSource(ctx, feedCfg)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("create feed source: %w", err)
	}

	retry := services.RetryPolicy{Attempts: cfg.CalculationRetries, Interval: cfg.CalculationRetryInterval}
	reports := services.NewReportService(repo, src.Source, signer, alerter, retry)

	logger.InfoContext(ctx, "Application initialized",
		log.FieldOperation, log.OpStartup,
		log.FieldKeyID, keys.ReportSigningKey().ID,
		"feed_backend", feedCfg.Type)

	return &App{
		Repo:     repo,
		Keys:     keys,
		Registry: registry,
		Signer:   signer,
		Reports:  reports,
		Caches:   caches,
	}, nil
}

// Close stops cache cleanup and closes storage.
func (a *App) Close() error {
	a.Caches.Stop()
	return a.Repo.Close()
}
