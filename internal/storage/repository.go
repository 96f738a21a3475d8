// Package storage persists dashboard annotations and snapshot refresh events
// in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"costboard/internal/core"
	"costboard/internal/log"
)

var (
	ErrNotFound   = errors.New("insight not found")
	ErrInvalidKey = errors.New("invalid insight key")
)

const maxKeyLength = 200

// SnapshotEvent records one processed snapshot refresh notification.
type SnapshotEvent struct {
	ID         int64       `json:"id"`
	Brand      string      `json:"brand"`
	Period     core.Period `json:"period,omitempty"`
	Kind       string      `json:"kind,omitempty"`
	Evicted    int         `json:"evicted"`
	ReceivedAt time.Time   `json:"receivedAt"`
}

type SQLiteRepository struct {
	db     *sql.DB
	now    func() time.Time
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; serialise on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger = logger.WithComponent(log.ComponentStorage)
	logger.Info("SQLite ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db, now: time.Now, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func validKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > maxKeyLength {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// GetInsights returns the whole annotation document.
func (r *SQLiteRepository) GetInsights(ctx context.Context) (core.Insights, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT box_key, trend, insight, analysis, cost_item, updated_at FROM insights ORDER BY box_key`)
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}
	defer rows.Close()

	doc := make(core.Insights)
	for rows.Next() {
		var (
			key string
			in  core.Insight
		)
		if err := rows.Scan(&key, &in.Trend, &in.Insight, &in.Analysis, &in.CostItem, &in.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		doc[key] = in
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate insights: %w", err)
	}
	return doc, nil
}

// GetInsight returns the annotation stored under key.
func (r *SQLiteRepository) GetInsight(ctx context.Context, key string) (core.Insight, error) {
	var in core.Insight
	err := r.db.QueryRowContext(ctx,
		`SELECT trend, insight, analysis, cost_item, updated_at FROM insights WHERE box_key = ?`, key).
		Scan(&in.Trend, &in.Insight, &in.Analysis, &in.CostItem, &in.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Insight{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return core.Insight{}, fmt.Errorf("get insight %s: %w", key, err)
	}
	return in, nil
}

// ReplaceInsights swaps the stored document for doc in one transaction.
func (r *SQLiteRepository) ReplaceInsights(ctx context.Context, doc core.Insights) error {
	for key := range doc {
		if err := validKey(key); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM insights`); err != nil {
		return fmt.Errorf("clear insights: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO insights (box_key, trend, insight, analysis, cost_item, updated_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := r.now().UTC()
	for key, in := range doc {
		if _, err := stmt.ExecContext(ctx, key, in.Trend, in.Insight, in.Analysis, in.CostItem, now); err != nil {
			return fmt.Errorf("insert insight %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insights: %w", err)
	}

	r.logger.InfoContext(ctx, "Insights replaced", log.FieldOperation, log.OpUpdate, log.FieldRecords, len(doc))
	return nil
}

// UpsertInsight stores one annotation, replacing any previous one.
func (r *SQLiteRepository) UpsertInsight(ctx context.Context, key string, in core.Insight) error {
	if err := validKey(key); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO insights (box_key, trend, insight, analysis, cost_item, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(box_key) DO UPDATE SET
			trend = excluded.trend,
			insight = excluded.insight,
			analysis = excluded.analysis,
			cost_item = excluded.cost_item,
			updated_at = excluded.updated_at`,
		key, in.Trend, in.Insight, in.Analysis, in.CostItem, r.now().UTC())
	if err != nil {
		return fmt.Errorf("upsert insight %s: %w", key, err)
	}
	return nil
}

// RecordSnapshotEvent appends a processed refresh notification.
func (r *SQLiteRepository) RecordSnapshotEvent(ctx context.Context, ev SnapshotEvent) (int64, error) {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = r.now()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO snapshot_events (brand, period, kind, evicted, received_at) VALUES (?, ?, ?, ?, ?)`,
		ev.Brand, int64(ev.Period), ev.Kind, ev.Evicted, ev.ReceivedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert snapshot event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("snapshot event id: %w", err)
	}
	return id, nil
}

// RecentSnapshotEvents lists the latest refresh notifications, newest first.
func (r *SQLiteRepository) RecentSnapshotEvents(ctx context.Context, limit int) ([]SnapshotEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, brand, period, kind, evicted, received_at
		FROM snapshot_events
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshot events: %w", err)
	}
	defer rows.Close()

	var out []SnapshotEvent
	for rows.Next() {
		var (
			ev     SnapshotEvent
			period int64
		)
		if err := rows.Scan(&ev.ID, &ev.Brand, &period, &ev.Kind, &ev.Evicted, &ev.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot event: %w", err)
		}
		ev.Period = core.Period(period)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot events: %w", err)
	}
	return out, nil
}
