package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/tether-go/internal/config"
	"github.com/openclaw/tether-go/internal/database"
	redisclient "github.com/openclaw/tether-go/internal/redis"
)

// Backend is an opened Store plus the connection behind it.
type Backend struct {
	Store Store
	// Redis is the store's client when StoreDriver is redis, nil otherwise.
	Redis *redisclient.Client
	// Close releases the backend connection and is never nil.
	Close func() error
}

// Open builds the Store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.EncryptionKey != "" {
		encrypted, err := NewEncryptedStore(backend.Store, cfg.EncryptionKey)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("encrypted store: %w", err)
		}
		log.Info().Msg("store values encrypted at rest")
		backend.Store = encrypted
	}

	return backend, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return &Backend{Store: NewMemoryStore(), Close: func() error { return nil }}, nil

	case config.StoreSQLite, config.StorePostgres:
		driver, dsn := database.DriverSQLite, cfg.StorePath
		if cfg.StoreDriver == config.StorePostgres {
			driver, dsn = database.DriverPostgres, cfg.DatabaseURL
		}

		db, err := database.Connect(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", driver, err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
		defer cancel()
		if err := db.Ping(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping %s: %w", driver, err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}

		log.Info().Str("driver", driver).Msg("database connected")
		return &Backend{Store: NewSQLStore(db, cfg.StoreNamespace), Close: db.Close}, nil

	case config.StoreRedis:
		client, err := redisclient.NewClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}

		log.Info().Msg("redis connected")
		return &Backend{Store: NewRedisStore(client.Client, cfg.StoreNamespace), Redis: client, Close: client.Close}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
