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

// BigQuery queries of the snapshot run store. The `%s` placeholder is the
// fully qualified table name; values are bound as named query parameters.
const (
	// QryLatestRun returns the most recent snapshot of a single run.
	QryLatestRun = "SELECT * FROM `%s` WHERE id = @id ORDER BY updated_at DESC LIMIT 1"

	// QryListLatestRuns keeps the most recent snapshot per run id
	// (ROW_NUMBER over the id partition) and returns the newest runs first.
	QryListLatestRuns = "SELECT * EXCEPT(rn) FROM (" +
		"SELECT *, ROW_NUMBER() OVER (PARTITION BY id ORDER BY updated_at DESC) AS rn FROM `%s`" +
		") WHERE rn = 1 ORDER BY created_at DESC LIMIT @limit"
)
