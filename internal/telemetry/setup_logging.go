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

// Package telemetry sets up the observability of the process: structured
// logging in the Cloud Logging format and OpenTelemetry tracing.
package telemetry

import (
	"context"
	"io"
	"log"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// spanContextLogHandler adds the trace and span of the record's context using
// the field names Cloud Logging correlates on.
type spanContextLogHandler struct {
	slog.Handler
}

func handlerWithSpanContext(handler slog.Handler) *spanContextLogHandler {
	return &spanContextLogHandler{Handler: handler}
}

func (t *spanContextLogHandler) Handle(ctx context.Context, record slog.Record) error {
	if s := trace.SpanContextFromContext(ctx); s.IsValid() {
		// https://cloud.google.com/logging/docs/structured-logging#special-payload-fields
		record.AddAttrs(
			slog.Any("logging.googleapis.com/trace", s.TraceID()),
			slog.Any("logging.googleapis.com/spanId", s.SpanID()),
			slog.Bool("logging.googleapis.com/trace_sampled", s.TraceFlags().IsSampled()),
		)
	}
	return t.Handler.Handle(ctx, record)
}

func (t *spanContextLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return handlerWithSpanContext(t.Handler.WithAttrs(attrs))
}

func (t *spanContextLogHandler) WithGroup(name string) slog.Handler {
	return handlerWithSpanContext(t.Handler.WithGroup(name))
}

// replacer renames the slog keys to the ones Cloud Logging expects.
func replacer(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey:
		a.Key = "severity"
		// https://cloud.google.com/logging/docs/reference/v2/rest/v2/LogEntry#LogSeverity
		if level, ok := a.Value.Any().(slog.Level); ok && level == slog.LevelWarn {
			a.Value = slog.StringValue("WARNING")
		}
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

// ParseLevel maps a configured level name onto a slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the JSON logger used by the process.
func NewLogger(w io.Writer, level string) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: replacer,
	})
	return slog.New(handlerWithSpanContext(jsonHandler))
}

// SetupLogging installs NewLogger as the slog default and points the
// standard log package at the same writer.
func SetupLogging(w io.Writer, level string) {
	log.SetOutput(w)
	log.SetPrefix("[INFO] ")
	log.SetFlags(log.Ldate | log.Ltime)

	slog.SetDefault(NewLogger(w, level))
}
