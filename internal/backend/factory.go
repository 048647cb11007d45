package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"txdash/internal/log"
	"txdash/internal/storage"
	"txdash/internal/store"
	"txdash/internal/store/memory"
	"txdash/internal/store/mongo"
)

const mongoConnectTimeout = 10 * time.Second

// opener opens one backend kind and returns the attrs worth logging.
type opener func(ctx context.Context, cfg Config) (store.Store, func() error, []any, error)

var openers = map[BackendType]opener{
	SQLiteBackend: openSQLite,
	MongoBackend:  openMongo,
	MemoryBackend: openMemory,
}

type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory logs through logger, or the default logger when nil.
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, cleanup, attrs, err := openers[cfg.Type](ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Type, err)
	}
	f.logger.Info("Store backend ready", append([]any{log.FieldBackend, cfg.Type.String()}, attrs...)...)
	return &BackendResult{Store: st, Cleanup: cleanup}, nil
}

func openSQLite(_ context.Context, cfg Config) (store.Store, func() error, []any, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, nil, nil, err
	}
	return repo, repo.Close, []any{"db_path", cfg.SQLiteDBPath}, nil
}

func openMongo(ctx context.Context, cfg Config) (store.Store, func() error, []any, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	st, err := mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	if err != nil {
		return nil, nil, nil, err
	}
	return st, st.Close, []any{"database", cfg.MongoDatabase, "collection", cfg.MongoCollection}, nil
}

func openMemory(context.Context, Config) (store.Store, func() error, []any, error) {
	st := memory.New()
	return st, st.Close, nil, nil
}
