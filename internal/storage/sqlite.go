package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "notifycenter/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadAlarm(ctx context.Context) (AlarmRecord, error) {
	var (
		r                  AlarmRecord
		armedAt, updatedAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT title, text, attempt, armed_at, updated_at FROM alarm_state WHERE id = 1`,
	).Scan(&r.Title, &r.Text, &r.Attempt, &armedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AlarmRecord{}, nil
	}
	if err != nil {
		return AlarmRecord{}, err
	}
	r.ArmedAt = parseTime(armedAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

func (s *sqliteStore) SaveAlarm(ctx context.Context, r AlarmRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alarm_state(id, title, text, attempt, armed_at, updated_at) VALUES(1,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET title=excluded.title, text=excluded.text, attempt=excluded.attempt,
		 armed_at=excluded.armed_at, updated_at=excluded.updated_at`,
		r.Title, r.Text, r.Attempt, formatTime(r.ArmedAt), formatTime(r.UpdatedAt),
	)
	return err
}

func (s *sqliteStore) AppendDelivery(ctx context.Context, r DeliveryRecord) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(id, at, channel, provider, recipient, message_type, repeat, ok, diagnostic)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		r.ID, r.At.Format(time.RFC3339Nano), r.Channel, nullStr(r.Provider), r.Recipient,
		r.MessageType, r.Repeat, r.OK, nullStr(r.Diagnostic),
	)
	return err
}

func (s *sqliteStore) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, channel, provider, recipient, message_type, repeat, ok, diagnostic
		 FROM deliveries ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliveryRecord
	for rows.Next() {
		var (
			r                    DeliveryRecord
			at                   string
			provider, diagnostic sql.NullString
		)
		if err := rows.Scan(&r.ID, &at, &r.Channel, &provider, &r.Recipient, &r.MessageType, &r.Repeat, &r.OK, &diagnostic); err != nil {
			return nil, err
		}
		r.At, _ = time.Parse(time.RFC3339Nano, at)
		r.Provider = provider.String
		r.Diagnostic = diagnostic.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest last, matching the other backends.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v sql.NullString) time.Time {
	if !v.Valid || v.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
