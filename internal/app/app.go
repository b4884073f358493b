// Package app wires adapters and services from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/chopnow/storefront/internal/adapter/auth"
	"github.com/chopnow/storefront/internal/adapter/events"
	"github.com/chopnow/storefront/internal/adapter/handler"
	"github.com/chopnow/storefront/internal/adapter/storage"
	"github.com/chopnow/storefront/internal/config"
	"github.com/chopnow/storefront/internal/core/service"
	"github.com/chopnow/storefront/internal/port"
	"github.com/chopnow/storefront/internal/seed"
)

// SessionStore holds sessions and idempotency keys and fans out identity
// changes. Redis and the in-process cache both satisfy it.
type SessionStore interface {
	port.CacheRepository
	port.IdentityNotifier
}

type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	DB       port.DatabaseRepository
	Sessions SessionStore
	Events   port.EventPublisher
	Auth     *auth.Authenticator
	Services handler.Services

	closers []func() error
}

// Open connects every backing service named in cfg. A memory store is
// seeded with the demo storefront.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openSessions(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.openEvents()

	a.Auth = auth.NewAuthenticator(cfg.Auth.JWTSecret, a.Sessions, a.Sessions, cfg.Auth.SessionTTL, logger)
	a.Services = handler.Services{
		Orders:     service.NewOrderService(a.DB, a.Sessions, a.Events, logger),
		Dashboards: service.NewDashboardService(a.DB, logger, cfg.Dash.VendorRecentOrders, cfg.Dash.AdminRecentOrders),
		Vendors:    service.NewVendorService(a.DB, a.Sessions, logger),
		Catalog:    service.NewCatalogService(a.DB, logger),
		Reviews:    service.NewReviewService(a.DB, logger),
		Users:      service.NewUserService(a.DB, logger),
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.Store.Driver {
	case config.StoreMemory:
		db := storage.NewMemoryAdapter()
		if err := seed.Load(ctx, db, seed.Demo(time.Now().UTC())); err != nil {
			return err
		}
		a.DB = db
		a.Logger.Info().Msg("using in-memory store with demo data")
		return nil
	case config.StoreMySQL:
		db, err := OpenMySQL(ctx, a.Config.Store.MySQLDSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		if err := storage.Migrate(ctx, db); err != nil {
			return err
		}
		a.DB = storage.NewMySQLAdapter(db)
		a.Logger.Info().Msg("connected to mysql")
		return nil
	}
	return fmt.Errorf("unknown store driver %q", a.Config.Store.Driver)
}

func (a *App) openSessions(ctx context.Context) error {
	if a.Config.Redis.Addr == "" {
		a.Sessions = storage.NewMemoryCache()
		a.Logger.Warn().Msg("REDIS_ADDR empty, sessions kept in process")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
		PoolSize: 100,
	})
	a.closers = append(a.closers, rdb.Close)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	a.Sessions = storage.NewRedisAdapter(rdb)
	a.Logger.Info().Str("addr", a.Config.Redis.Addr).Msg("connected to redis")
	return nil
}

func (a *App) openEvents() {
	if len(a.Config.Kafka.Brokers) == 0 {
		a.Events = events.NewLogPublisher(a.Logger)
		return
	}
	publisher := events.NewKafkaPublisher(events.NewKafkaWriter(a.Config.Kafka.Brokers, a.Config.Kafka.OrderTopic))
	a.closers = append(a.closers, publisher.Close)
	a.Events = publisher
	a.Logger.Info().Strs("brokers", a.Config.Kafka.Brokers).Str("topic", a.Config.Kafka.OrderTopic).Msg("publishing order events to kafka")
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenMySQL opens and pings a pool sized for the API server.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}
