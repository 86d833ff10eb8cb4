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

	_ "modernc.org/sqlite"

	logx "quizbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite opened", logx.String("path", path))
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

func (s *sqliteStore) GetStat(ctx context.Context, mode, id string) (StatRecord, bool, error) {
	rec := StatRecord{Mode: mode, EntityID: id}
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT label, correct, incorrect, total, percent, updated_at FROM stats WHERE mode = ? AND entity_id = ?`,
		mode, id,
	).Scan(&rec.Label, &rec.Correct, &rec.Incorrect, &rec.Total, &rec.Percent, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return StatRecord{}, false, nil
	}
	if err != nil {
		return StatRecord{}, false, err
	}
	rec.UpdatedAt = time.UnixMilli(updated)
	return rec, true, nil
}

func (s *sqliteStore) PutStat(ctx context.Context, rec StatRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stats(mode, entity_id, label, correct, incorrect, total, percent, updated_at)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(mode, entity_id) DO UPDATE SET
		   label=excluded.label, correct=excluded.correct, incorrect=excluded.incorrect,
		   total=excluded.total, percent=excluded.percent, updated_at=excluded.updated_at`,
		rec.Mode, rec.EntityID, rec.Label, rec.Correct, rec.Incorrect, rec.Total, rec.Percent, rec.UpdatedAt.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) ListStats(ctx context.Context, mode string) ([]StatRecord, error) {
	q := `SELECT mode, entity_id, label, correct, incorrect, total, percent, updated_at FROM stats`
	var args []any
	if mode != "" {
		q += ` WHERE mode = ?`
		args = append(args, mode)
	}
	q += ` ORDER BY mode, entity_id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatRecord
	for rows.Next() {
		var rec StatRecord
		var updated int64
		if err := rows.Scan(&rec.Mode, &rec.EntityID, &rec.Label, &rec.Correct, &rec.Incorrect, &rec.Total, &rec.Percent, &updated); err != nil {
			return nil, err
		}
		rec.UpdatedAt = time.UnixMilli(updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendResult(ctx context.Context, r GameResult) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results(at, user_id, username, mode, score, rounds) VALUES(?,?,?,?,?,?)`,
		r.At.UnixMilli(), r.UserID, nullStr(r.Username), r.Mode, r.Score, r.Rounds,
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
