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

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mexporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/metric"
	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/jaycherian/movielab/internal/cloud"
	"go.opentelemetry.io/contrib/detectors/gcp"
	"go.opentelemetry.io/contrib/propagators/autoprop"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Exporter names accepted in the telemetry configuration.
const (
	ExporterNone = "none"
	ExporterGCP  = "gcp"
	ExporterOTLP = "otlp"
)

// ErrUnknownExporter is returned for an exporter or OTLP protocol this
// package does not support.
var ErrUnknownExporter = errors.New("unknown telemetry exporter")

// SetupOpenTelemetry installs the propagators and, unless the exporter is
// "none", a tracer provider exporting to Cloud Trace or an OTLP collector.
// The "gcp" exporter also ships metrics to Cloud Monitoring. The returned
// shutdown flushes everything that was set up.
func SetupOpenTelemetry(ctx context.Context, config *cloud.Config) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	otel.SetTextMapPropagator(autoprop.NewTextMapPropagator())

	exporter := config.Telemetry.Exporter
	if exporter == "" || exporter == ExporterNone {
		slog.Debug("tracing disabled")
		return shutdown, nil
	}

	res, err := newResource(ctx, config)
	if err != nil {
		return nil, err
	}

	spanExporter, err := newSpanExporter(ctx, config)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	otel.SetTracerProvider(tp)

	if exporter == ExporterGCP {
		mExporter, err := mexporter.New(mexporter.WithProjectID(config.Application.GoogleProjectId))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to create metric exporter: %w", err), shutdown(ctx))
		}
		mProvider := metric.NewMeterProvider(
			metric.WithReader(metric.NewPeriodicReader(mExporter)),
			metric.WithResource(res),
		)
		shutdownFuncs = append(shutdownFuncs, mProvider.Shutdown)
		otel.SetMeterProvider(mProvider)
	}

	slog.Info("tracing configured", "exporter", exporter, "protocol", config.Telemetry.OTLPProtocol, "endpoint", config.Telemetry.OTLPEndpoint)
	return shutdown, nil
}

func newResource(ctx context.Context, config *cloud.Config) (*resource.Resource, error) {
	opts := []resource.Option{
		resource.WithTelemetrySDK(),
		resource.WithFromEnv(),
		resource.WithAttributes(semconv.ServiceNameKey.String(config.Application.Name)),
	}
	if config.Telemetry.Exporter == ExporterGCP {
		opts = append(opts, resource.WithDetectors(gcp.NewDetector()))
	}
	res, err := resource.New(ctx, opts...)
	if errors.Is(err, resource.ErrPartialResource) || errors.Is(err, resource.ErrSchemaURLConflict) {
		slog.Warn("partial resource detection", "error", err)
	} else if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func newSpanExporter(ctx context.Context, config *cloud.Config) (sdktrace.SpanExporter, error) {
	t := config.Telemetry
	switch t.Exporter {
	case ExporterGCP:
		return texporter.New(texporter.WithProjectID(config.Application.GoogleProjectId))
	case ExporterOTLP:
		switch t.OTLPProtocol {
		case "", "grpc":
			opts := []otlptracegrpc.Option{}
			if t.OTLPEndpoint != "" {
				opts = append(opts, otlptracegrpc.WithEndpoint(t.OTLPEndpoint))
			}
			if t.OTLPInsecure {
				opts = append(opts, otlptracegrpc.WithInsecure())
			}
			return otlptracegrpc.New(ctx, opts...)
		case "http", "http/protobuf":
			opts := []otlptracehttp.Option{}
			if t.OTLPEndpoint != "" {
				opts = append(opts, otlptracehttp.WithEndpoint(t.OTLPEndpoint))
			}
			if t.OTLPInsecure {
				opts = append(opts, otlptracehttp.WithInsecure())
			}
			return otlptracehttp.New(ctx, opts...)
		default:
			return nil, fmt.Errorf("%w: otlp protocol %q", ErrUnknownExporter, t.OTLPProtocol)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, t.Exporter)
	}
}
