package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"ipguard/internal/config"
	"ipguard/internal/model"
)

type Store interface {
	Init(ctx context.Context) error
	Close() error
	InsertEvent(ctx context.Context, ev model.NormalizedEvent) error
	FetchWindow(ctx context.Context, t0, t1 time.Time) ([]model.WindowEvent, error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// encodeJSON renders a value for a JSON column, keeping NULL for nil so the
// absence of a request body survives the round trip.
func encodeJSON(value any) any {
	if value == nil {
		return nil
	}
	data, _ := json.Marshal(value)
	return string(data)
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
