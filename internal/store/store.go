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

// Package store records pipeline runs. The workflow writes a snapshot of the
// run after every state change; the HTTP layer reads them back for polling and
// history listings.
//
// Three backends exist:
//   - memory: a mutex guarded map, the default for a single process.
//   - postgres: one row per run in a table with JSONB columns for the slices,
//     through pgx's database/sql driver wrapped with otelsql.
//   - bigquery: append-only snapshots streamed with an Inserter; reads return
//     the latest snapshot of each run.
package store

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/model"
)

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("run not found")

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 50

// RunStore persists pipeline runs.
type RunStore interface {
	Create(ctx context.Context, run *model.PipelineRun) error
	Update(ctx context.Context, run *model.PipelineRun) error
	Get(ctx context.Context, id string) (*model.PipelineRun, error)
	// List returns the most recent runs first.
	List(ctx context.Context, limit int) ([]*model.PipelineRun, error)
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// New creates the run store selected by config. bq is only used by the
// bigquery backend.
func New(ctx context.Context, config cloud.RunStore, bq *bigquery.Client) (RunStore, error) {
	switch config.Backend {
	case "", "memory":
		return NewMemoryRunStore(), nil
	case "postgres":
		db, err := OpenPostgres(ctx, config.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s, err := NewPostgresRunStore(db, config.Table)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil
	case "bigquery":
		if bq == nil {
			return nil, errors.New("bigquery run store requires a bigquery client")
		}
		s := NewBigQueryRunStore(bq, config.Dataset, config.Table)
		if err := s.EnsureTable(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown run store backend %q", config.Backend)
	}
}
