package storage

import (
	"context"
	"errors"
	"strings"

	logx "quizbot/pkg/logx"
)

// Store is the persistence API used by the stats aggregator, the scheduler and the HTTP API.
type Store interface {
	// GetStat returns ok=false (and no error) when no record exists yet.
	GetStat(ctx context.Context, mode, entityID string) (rec StatRecord, ok bool, err error)
	PutStat(ctx context.Context, rec StatRecord) error
	// ListStats returns records for mode, or for all modes when mode is empty.
	ListStats(ctx context.Context, mode string) ([]StatRecord, error)
	AppendResult(ctx context.Context, r GameResult) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.Component("storage").With(logx.String("driver", driver))

	switch driver {
	case "memory":
		return NewMemory(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "valkey", "redis":
		return openValkey(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
