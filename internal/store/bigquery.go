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
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/movielab/internal/core/model"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// BigQueryRunStore streams a snapshot row for every Create and Update. Rows
// are never rewritten, so reads pick the latest snapshot per run id.
type BigQueryRunStore struct {
	client  *bigquery.Client
	dataset string
	table   string
}

var _ RunStore = (*BigQueryRunStore)(nil)

func NewBigQueryRunStore(client *bigquery.Client, dataset string, table string) *BigQueryRunStore {
	return &BigQueryRunStore{client: client, dataset: dataset, table: table}
}

// FullyQualifiedTable returns project.dataset.table.
func (b *BigQueryRunStore) FullyQualifiedTable() string {
	return fmt.Sprintf("%s.%s.%s", b.client.Project(), b.dataset, b.table)
}

// EnsureTable creates the snapshot table, with a schema inferred from
// model.PipelineRun, when it does not exist.
func (b *BigQueryRunStore) EnsureTable(ctx context.Context) error {
	table := b.client.Dataset(b.dataset).Table(b.table)
	_, err := table.Metadata(ctx)
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return fmt.Errorf("bigquery table metadata %s: %w", b.table, err)
	}

	schema, err := bigquery.InferSchema(model.PipelineRun{})
	if err != nil {
		return fmt.Errorf("infer run schema: %w", err)
	}
	if err := table.Create(ctx, &bigquery.TableMetadata{
		Schema:           schema,
		TimePartitioning: &bigquery.TimePartitioning{Field: "created_at"},
	}); err != nil {
		return fmt.Errorf("create bigquery table %s: %w", b.table, err)
	}
	slog.Info("created bigquery run table", "table", b.FullyQualifiedTable())
	return nil
}

func (b *BigQueryRunStore) put(ctx context.Context, run *model.PipelineRun) error {
	inserter := b.client.Dataset(b.dataset).Table(b.table).Inserter()
	if err := inserter.Put(ctx, run); err != nil {
		return fmt.Errorf("bigquery insert failed for run '%s': %w", run.ID, err)
	}
	return nil
}

func (b *BigQueryRunStore) Create(ctx context.Context, run *model.PipelineRun) error {
	return b.put(ctx, run)
}

func (b *BigQueryRunStore) Update(ctx context.Context, run *model.PipelineRun) error {
	return b.put(ctx, run)
}

func (b *BigQueryRunStore) Get(ctx context.Context, id string) (*model.PipelineRun, error) {
	q := b.client.Query(fmt.Sprintf(QryLatestRun, b.FullyQualifiedTable()))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	run := &model.PipelineRun{}
	err = itr.Next(run)
	if errors.Is(err, iterator.Done) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

func (b *BigQueryRunStore) List(ctx context.Context, limit int) ([]*model.PipelineRun, error) {
	q := b.client.Query(fmt.Sprintf(QryListLatestRuns, b.FullyQualifiedTable()))
	q.Parameters = []bigquery.QueryParameter{{Name: "limit", Value: listLimit(limit)}}
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]*model.PipelineRun, 0)
	for {
		run := &model.PipelineRun{}
		err := itr.Next(run)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, run)
	}
	return out, nil
}
