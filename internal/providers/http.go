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

// Package providers holds the clients of the upstream AI services. The
// subpackages implement one provider each; this package carries the error type
// and the JSON-over-HTTP helpers they share.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of an upstream error response is retained.
const maxErrorBody = 4 << 10

// UpstreamError is returned when a provider answers with a non-2xx status or
// with a payload that cannot be used. Body is for server-side logs only.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *UpstreamError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Provider)
	sb.WriteString(" request failed")
	if e.Status != 0 {
		fmt.Fprintf(&sb, " with status %d", e.Status)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if e.Body != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Body)
	}
	return sb.String()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ErrEmptyResponse is wrapped when a provider answers successfully but
// without the field the caller needs.
var ErrEmptyResponse = errors.New("empty response")

// Wrap turns err into an UpstreamError for provider unless it already is one.
func Wrap(provider string, err error) error {
	if err == nil {
		return nil
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return err
	}
	return &UpstreamError{Provider: provider, Err: err}
}

// CheckResponse returns an UpstreamError for non-2xx responses. The body is
// read (up to 4 KiB) but not closed.
func CheckResponse(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &UpstreamError{
		Provider: provider,
		Status:   resp.StatusCode,
		Body:     strings.TrimSpace(string(body)),
	}
}

// Request describes one JSON call to a provider.
type Request struct {
	Provider string
	Method   string
	URL      string
	Headers  map[string]string
	Body     interface{} // marshalled as JSON when not nil
}

// NewHTTPRequest builds the *http.Request for r.
func NewHTTPRequest(ctx context.Context, r Request) (*http.Request, error) {
	var body io.Reader
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", r.Provider, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", r.Provider, err)
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// DoJSON executes r and decodes a JSON response into out (skipped when out is nil).
func DoJSON(ctx context.Context, client *http.Client, r Request, out interface{}) error {
	req, err := NewHTTPRequest(ctx, r)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return &UpstreamError{Provider: r.Provider, Err: err}
	}
	defer resp.Body.Close()

	if err := CheckResponse(r.Provider, resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Provider: r.Provider, Status: resp.StatusCode, Err: fmt.Errorf("invalid response body: %w", err)}
	}
	return nil
}
