package main

import (
	"fmt"
	"log/slog"

	"github.com/heapchart/heapchart/heapchart"
	"github.com/heapchart/heapchart/heapchart/memorystorage"
	"github.com/heapchart/heapchart/internal/config"
	"github.com/heapchart/heapchart/storage/badgerstore"
	"github.com/heapchart/heapchart/storage/sqlstore"
)

// openStorage opens the configured backend. The returned close function
// is never nil.
func openStorage(cfg *config.Config, logger *slog.Logger) (heapchart.Storage, func() error, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memorystorage.New(), func() error { return nil }, nil

	case config.BackendBadger:
		s, err := badgerstore.New(badgerstore.Options{
			Dir:        cfg.Storage.Badger.Dir,
			Logger:     badgerstore.SlogAdapter{Logger: logger},
			SLogger:    logger,
			GCInterval: cfg.GetGCInterval(),
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.BackendSQLite:
		s, err := sqlstore.New(sqlstore.Options{
			Path:   cfg.Storage.SQLite.Path,
			Logger: logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
