// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/jaycherian/movielab/internal/core/model"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

var (
	sqlOpen         = sql.Open
	validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// OpenPostgres opens a traced connection pool with the pgx driver and checks
// connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	driverName, err := otelsql.Register("pgx",
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithSQLCommenter(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register otelsql: %w", err)
	}
	db, err := sqlOpen(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// PostgresRunStore keeps one row per run.
type PostgresRunStore struct {
	db    *sql.DB
	table string
}

var _ RunStore = (*PostgresRunStore)(nil)

// NewPostgresRunStore creates the store on table (default pipeline_runs).
func NewPostgresRunStore(db *sql.DB, table string) (*PostgresRunStore, error) {
	if table == "" {
		table = "pipeline_runs"
	}
	if !validIdentifier.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresRunStore{db: db, table: table}, nil
}

// Close closes the underlying pool.
func (p *PostgresRunStore) Close() error {
	return p.db.Close()
}

// Migrate creates the table and its indexes when missing.
func (p *PostgresRunStore) Migrate(ctx context.Context) error {
	steps := []struct {
		name string
		sql  string
	}{
		{
			name: "create_table_" + p.table,
			sql: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id                TEXT             PRIMARY KEY,
  session_id        TEXT             NOT NULL,
  status            TEXT             NOT NULL,
  scenes            JSONB            NOT NULL DEFAULT '[]',
  duration          TEXT             NOT NULL DEFAULT '',
  aspect_ratio      TEXT             NOT NULL DEFAULT '',
  total_steps       INTEGER          NOT NULL,
  completed_steps   INTEGER          NOT NULL DEFAULT 0,
  progress          DOUBLE PRECISION NOT NULL DEFAULT 0,
  current_step      TEXT             NOT NULL DEFAULT '',
  generated_videos  JSONB            NOT NULL DEFAULT '[]',
  synced_video_urls JSONB            NOT NULL DEFAULT '[]',
  merged_video_url  TEXT             NOT NULL DEFAULT '',
  warnings          JSONB            NOT NULL DEFAULT '[]',
  error             TEXT             NOT NULL DEFAULT '',
  created_at        TIMESTAMPTZ      NOT NULL DEFAULT now(),
  updated_at        TIMESTAMPTZ      NOT NULL DEFAULT now()
);`, p.table),
		},
		{
			name: "create_index_" + p.table + "_created_at",
			sql:  fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at DESC);`, p.table, p.table),
		},
		{
			name: "create_index_" + p.table + "_session_id",
			sql:  fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_session_id ON %s (session_id);`, p.table, p.table),
		},
	}

	start := time.Now()
	for _, step := range steps {
		if _, err := p.db.ExecContext(ctx, step.sql); err != nil {
			slog.Error("db migration failed", "step", step.name, "error", err)
			return fmt.Errorf("migration step %s failed: %w", step.name, err)
		}
		slog.Debug("db migration step applied", "step", step.name)
	}
	slog.Info("db migration complete", "table", p.table, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

const runColumns = `id, session_id, status, scenes, duration, aspect_ratio, total_steps, completed_steps, progress,
		current_step, generated_videos, synced_video_urls, merged_video_url, warnings, error, created_at, updated_at`

type jsonColumns struct {
	scenes, videos, synced, warnings string
}

func encodeColumns(run *model.PipelineRun) (jsonColumns, error) {
	var out jsonColumns
	for _, c := range []struct {
		dst *string
		v   interface{}
	}{
		{&out.scenes, nonNil(run.Scenes)},
		{&out.videos, nonNil(run.GeneratedVideos)},
		{&out.synced, nonNil(run.SyncedVideoURLs)},
		{&out.warnings, nonNil(run.Warnings)},
	} {
		b, err := json.Marshal(c.v)
		if err != nil {
			return out, fmt.Errorf("encode run %s: %w", run.ID, err)
		}
		*c.dst = string(b)
	}
	return out, nil
}

func nonNil(v interface{}) interface{} {
	switch s := v.(type) {
	case []model.Scene:
		if s == nil {
			return []model.Scene{}
		}
	case []model.GeneratedVideo:
		if s == nil {
			return []model.GeneratedVideo{}
		}
	case []string:
		if s == nil {
			return []string{}
		}
	}
	return v
}

func (p *PostgresRunStore) Create(ctx context.Context, run *model.PipelineRun) error {
	cols, err := encodeColumns(run)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`, p.table, runColumns)
	_, err = p.db.ExecContext(ctx, q,
		run.ID, run.SessionID, run.Status, cols.scenes, run.Duration, run.AspectRatio,
		run.TotalSteps, run.CompletedSteps, run.Progress, run.CurrentStep,
		cols.videos, cols.synced, run.MergedVideoURL, cols.warnings, run.Error,
		run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

func (p *PostgresRunStore) Update(ctx context.Context, run *model.PipelineRun) error {
	cols, err := encodeColumns(run)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`UPDATE %s SET status = $2, completed_steps = $3, progress = $4, current_step = $5,
		generated_videos = $6, synced_video_urls = $7, merged_video_url = $8, warnings = $9, error = $10, updated_at = $11
		WHERE id = $1`, p.table)
	res, err := p.db.ExecContext(ctx, q,
		run.ID, run.Status, run.CompletedSteps, run.Progress, run.CurrentStep,
		cols.videos, cols.synced, run.MergedVideoURL, cols.warnings, run.Error, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*model.PipelineRun, error) {
	var (
		run                              model.PipelineRun
		scenes, videos, synced, warnings []byte
	)
	if err := row.Scan(
		&run.ID, &run.SessionID, &run.Status, &scenes, &run.Duration, &run.AspectRatio,
		&run.TotalSteps, &run.CompletedSteps, &run.Progress, &run.CurrentStep,
		&videos, &synced, &run.MergedVideoURL, &warnings, &run.Error,
		&run.CreatedAt, &run.UpdatedAt,
	); err != nil {
		return nil, err
	}
	for _, c := range []struct {
		raw []byte
		dst interface{}
	}{
		{scenes, &run.Scenes},
		{videos, &run.GeneratedVideos},
		{synced, &run.SyncedVideoURLs},
		{warnings, &run.Warnings},
	} {
		if len(c.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(c.raw, c.dst); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

func (p *PostgresRunStore) Get(ctx context.Context, id string) (*model.PipelineRun, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, runColumns, p.table)
	run, err := scanRun(p.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

func (p *PostgresRunStore) List(ctx context.Context, limit int) ([]*model.PipelineRun, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC, id DESC LIMIT $1`, runColumns, p.table)
	rows, err := p.db.QueryContext(ctx, q, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]*model.PipelineRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}
