package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ipguard/internal/model"
)

// Timestamps are stored as fixed-width UTC text so that lexical comparison
// in the window query matches chronological order.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:ipguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS security_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service_name TEXT NOT NULL,
			ip TEXT NOT NULL,
			event_type INTEGER NOT NULL,
			severity INTEGER NOT NULL,
			description TEXT NOT NULL,
			occurred_at TEXT NOT NULL,
			request_id TEXT,
			method TEXT,
			path TEXT,
			status_code INTEGER,
			user_agent TEXT,
			request TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_security_events_occurred ON security_events(occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_security_events_ip ON security_events(ip, occurred_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) InsertEvent(ctx context.Context, ev model.NormalizedEvent) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO security_events
		(service_name, ip, event_type, severity, description, occurred_at,
		 request_id, method, path, status_code, user_agent, request)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ServiceName,
		ev.IP,
		ev.EventType,
		ev.Severity,
		ev.Description,
		ev.OccurredAt.UTC().Format(sqliteTimeLayout),
		ev.RequestID,
		ev.Method,
		ev.Path,
		ev.StatusCode,
		ev.UserAgent,
		encodeJSON(ev.Request),
	)
	return err
}

func (s *sqliteStore) FetchWindow(ctx context.Context, t0, t1 time.Time) ([]model.WindowEvent, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ip, event_type, severity, occurred_at, method, path, status_code, user_agent
		FROM security_events
		WHERE occurred_at >= ? AND occurred_at < ?`,
		t0.UTC().Format(sqliteTimeLayout), t1.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.WindowEvent
	for rows.Next() {
		var (
			ev         model.WindowEvent
			occurred   string
			method     sql.NullString
			path       sql.NullString
			statusCode sql.NullInt64
			userAgent  sql.NullString
		)
		if err := rows.Scan(&ev.IP, &ev.EventType, &ev.Severity, &occurred, &method, &path, &statusCode, &userAgent); err != nil {
			return nil, err
		}
		ts, err := time.ParseInLocation(sqliteTimeLayout, occurred, time.UTC)
		if err != nil {
			return nil, err
		}
		ev.OccurredAt = ts
		ev.Method = nullString(method)
		ev.Path = nullString(path)
		ev.StatusCode = nullInt(statusCode)
		ev.UserAgent = nullString(userAgent)
		events = append(events, ev)
	}
	return events, rows.Err()
}
