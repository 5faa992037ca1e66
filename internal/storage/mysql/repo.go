// Package mysql persists search analytics.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"storefinder/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Open forces parseTime and UTC on dsn, then verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repo) RecordSearch(ctx context.Context, l domain.SearchLog) error {
	summary, err := json.Marshal(l.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	created := l.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = r.db.ExecContext(ctx, insertSearchSQL,
		l.RequestID,
		l.Lat,
		l.Lng,
		l.RadiusMeters,
		valStr(l.Category),
		l.ResultCount,
		l.Status,
		l.Cached,
		l.Duration.Milliseconds(),
		valJSON(summary),
		created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert search_log: %w", err)
	}
	return nil
}

// RecentSearches returns the newest entries first. limit is clamped to [1,500].
func (r *Repo) RecentSearches(ctx context.Context, limit int) ([]domain.SearchLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	rows, err := r.db.QueryContext(ctx, recentSearchesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query search_log: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SearchLog, 0, limit)
	for rows.Next() {
		var (
			l          domain.SearchLog
			category   sql.NullString
			summary    []byte
			durationMS int64
		)
		if err := rows.Scan(
			&l.RequestID,
			&l.Lat, &l.Lng,
			&l.RadiusMeters,
			&category,
			&l.ResultCount,
			&l.Status,
			&l.Cached,
			&durationMS,
			&summary,
			&l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan search_log: %w", err)
		}
		l.Category = category.String
		l.Duration = time.Duration(durationMS) * time.Millisecond
		if len(summary) > 0 {
			_ = json.Unmarshal(summary, &l.Summary)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search_log: %w", err)
	}
	return out, nil
}
