package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/haven-backend/internal/data/db"
	"github.com/yungbote/haven-backend/internal/platform/kvstore"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

func (c Config) dbConfig() db.Config {
	return db.Config{
		Driver:       c.StoreDriver,
		Host:         c.PostgresHost,
		Port:         c.PostgresPort,
		User:         c.PostgresUser,
		Password:     c.PostgresPassword,
		Name:         c.PostgresName,
		SSLMode:      c.PostgresSSLMode,
		SQLitePath:   c.SQLitePath,
		MaxOpenConns: c.DBMaxOpenConns,
		MaxIdleConns: c.DBMaxIdleConns,
	}
}

// OpenStore picks the keyed store backing every repo.
func OpenStore(ctx context.Context, log *logger.Logger, cfg Config) (kvstore.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	log.Info("Opening store...", "driver", driver)
	switch driver {
	case "memory":
		log.Warn("in-memory store selected; state is lost on restart")
		return kvstore.NewMemoryStore(), nil
	case "postgres", "sqlite":
		gdb, err := db.Open(log, cfg.dbConfig())
		if err != nil {
			return nil, fmt.Errorf("init %s: %w", driver, err)
		}
		store, err := kvstore.NewGormStore(gdb, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		store, err := kvstore.NewRedisStore(ctx, log, kvstore.RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Namespace: cfg.RedisNamespace,
		})
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
