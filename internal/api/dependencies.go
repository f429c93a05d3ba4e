package api

import (
	"context"
	"fmt"

	"groundtransfer/opsdesk/internal/common"
	"groundtransfer/opsdesk/internal/config"
	"groundtransfer/opsdesk/internal/db"
	"groundtransfer/opsdesk/internal/db/repositories"
	"groundtransfer/opsdesk/internal/jobs"
	"groundtransfer/opsdesk/internal/metrics"
	"groundtransfer/opsdesk/internal/providers"
	"groundtransfer/opsdesk/internal/services"
	"groundtransfer/opsdesk/internal/workers"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

type Repositories struct {
	Bookings *repositories.BookingRepo
	Ledger   *repositories.SyncStatusRepo
	Backfill *repositories.BackfillRepo
}

type Services struct {
	Cache    common.CacheInterface
	Fetcher  *services.UpstreamFetcher
	Province *services.ProvinceService
	Upsert   *services.BookingUpsertService
	Tokens   *common.TriggerTokenService
	Sync     *jobs.BookingSyncJob
	Backfill *workers.BookingBackfillWorker
}

type Dependencies struct {
	Config   *config.Config
	PgDB     *gorm.DB
	SqlDB    *sqlx.DB
	Metrics  *metrics.MetricsRegistry
	Repo     *Repositories
	Services *Services
}

// InitDependencies opens both database handles and wires the sync engine
func InitDependencies(ctx context.Context, cfg *config.Config, metricsReg *metrics.MetricsRegistry) (*Dependencies, error) {
	dsn := cfg.Database.DSN()

	sqlDB, err := db.InitPostgres(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres (sqlx): %w", err)
	}

	pgDB, err := db.InitPostgresORM(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres (gorm): %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(pgDB); err != nil {
			return nil, err
		}
	}

	return BuildDependencies(cfg, pgDB, sqlDB, metricsReg), nil
}

// BuildDependencies wires everything on top of already opened handles
func BuildDependencies(cfg *config.Config, pgDB *gorm.DB, sqlDB *sqlx.DB, metricsReg *metrics.MetricsRegistry) *Dependencies {
	repos := &Repositories{
		Bookings: repositories.NewBookingRepo(pgDB),
		Ledger:   repositories.NewSyncStatusRepo(pgDB),
		Backfill: repositories.NewBackfillRepo(sqlDB),
	}

	cache := common.NewCache(cfg.Redis, cfg.Classifier.CacheTTL)
	fetcher := services.NewUpstreamFetcher(providers.NewReservationProvider(cfg.Upstream, metricsReg), cfg.Upstream)
	province := services.NewProvinceService(providers.NewProvinceClassifier(cfg.Classifier), cache, cfg.Classifier.CacheTTL, metricsReg)
	upsert := services.NewBookingUpsertService(pgDB, province, metricsReg)

	svcs := &Services{
		Cache:    cache,
		Fetcher:  fetcher,
		Province: province,
		Upsert:   upsert,
		Tokens:   common.NewTriggerTokenService(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL),
		Sync:     jobs.NewBookingSyncJob(fetcher, upsert, repos.Ledger, cfg, metricsReg),
		Backfill: workers.NewBookingBackfillWorker(repos.Backfill, repos.Bookings, fetcher, province, repos.Ledger, metricsReg),
	}

	return &Dependencies{
		Config:   cfg,
		PgDB:     pgDB,
		SqlDB:    sqlDB,
		Metrics:  metricsReg,
		Repo:     repos,
		Services: svcs,
	}
}

// BackfillDefaults are the configured options for scheduled and manual backfills
func (d *Dependencies) BackfillDefaults() workers.BackfillOptions {
	return workers.BackfillOptions{
		BatchSize: d.Config.Sync.BackfillBatchSize,
		DaysAhead: d.Config.Sync.BackfillDaysAhead,
		Delay:     d.Config.Sync.BackfillDelay,
	}
}

// Close releases the cache and database handles
func (d *Dependencies) Close() {
	if d.Services != nil && d.Services.Cache != nil {
		_ = d.Services.Cache.Close()
	}
	if d.SqlDB != nil {
		_ = d.SqlDB.Close()
	}
	if d.PgDB != nil {
		if sqlDB, err := d.PgDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
