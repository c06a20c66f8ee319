package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wiki-companion/config"
	"wiki-companion/kv"
)

// storage is the opened persistence layer.
type storage struct {
	store *kv.Store

	// watcher reports writes made by other processes; nil for backends that
	// cannot see any.
	watcher interface {
		Start(ctx context.Context) error
		Stop()
	}
	close func() error
}

func openStorage(c *config.Config, log *zap.Logger) (*storage, error) {
	log = log.With(zap.String("backend", c.Storage.Backend))

	switch c.Storage.Backend {
	case config.BackendMemory:
		return &storage{store: kv.New(kv.NewMemory(), log), close: noClose}, nil

	case config.BackendNone:
		log.Info("persistence disabled; state lives for the process only")
		return &storage{store: kv.New(kv.Unavailable{}, log), close: noClose}, nil

	case config.BackendFile:
		f, err := kv.OpenFile(c.Storage.Path, log)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", c.Storage.Path, err)
		}
		return &storage{store: kv.New(f, log), watcher: f, close: noClose}, nil

	case config.BackendSQLite:
		db, err := kv.OpenSQLite(c.Storage.Path, c.GetPollInterval(), log)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", c.Storage.Path, err)
		}
		return &storage{store: kv.New(db, log), watcher: db, close: db.Close}, nil
	}
	return nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalid, c.Storage.Backend)
}

func noClose() error { return nil }

func (s *storage) Close() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	return s.close()
}
