package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/handler"
	"github.com/noah-isme/syllabus-portal/internal/repository"
	"github.com/noah-isme/syllabus-portal/internal/service"
	"github.com/noah-isme/syllabus-portal/pkg/cache"
	"github.com/noah-isme/syllabus-portal/pkg/config"
	"github.com/noah-isme/syllabus-portal/pkg/database"
	"github.com/noah-isme/syllabus-portal/pkg/storage"
)

// localStore bundles the selected Local Store backend with its readiness probe and closer.
type localStore struct {
	service.KeyValueStore
	probe handler.ReadinessProbe
	close func() error
}

func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*localStore, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		mem := repository.NewMemoryStore()
		return &localStore{KeyValueStore: mem, probe: keysProbe(mem), close: noClose}, nil

	case "", config.StoreDriverFile:
		files, err := storage.NewLocalStorage(cfg.Store.FileDir)
		if err != nil {
			return nil, fmt.Errorf("open file store %s: %w", cfg.Store.FileDir, err)
		}
		fs := repository.NewFileStore(files)
		return &localStore{KeyValueStore: fs, probe: keysProbe(fs), close: noClose}, nil

	case config.StoreDriverRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		rs := repository.NewRedisStore(client, logr)
		return &localStore{
			KeyValueStore: rs,
			probe:         func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close:         rs.Close,
		}, nil

	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		pg := repository.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &localStore{KeyValueStore: pg, probe: db.PingContext, close: db.Close}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}
}

func keysProbe(store service.KeyValueStore) handler.ReadinessProbe {
	return func(ctx context.Context) error {
		_, err := store.Keys(ctx, service.KeySyncURL)
		return err
	}
}

func noClose() error { return nil }
