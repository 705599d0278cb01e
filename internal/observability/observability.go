// Package observability configures the process-wide logging pipeline.
//
// Logs always go to stderr as slog text or JSON. When an OTLP endpoint is
// configured through the standard OTEL_* environment variables, records are
// additionally exported through the OpenTelemetry log bridge.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const loggerName = "notegate"

// Instrument installs the default slog logger for the given level and format
// ("text" or "json"). An OTLP log exporter is attached when the environment
// requests one; without it the function performs no network setup.
func Instrument(level slog.Level, format string) error {
	handler, err := newHandler(level, format)
	if err != nil {
		return err
	}

	exporter, err := exporterFromEnv()
	if err != nil {
		return fmt.Errorf("failed to create log exporter: %w", err)
	}
	if exporter != nil {
		provider := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(
				minsev.NewLogProcessor(
					sdklog.NewBatchProcessor(exporter),
					minSeverity(level),
				),
			),
		)
		handler = fanoutHandler{
			handler,
			otelslog.NewHandler(loggerName, otelslog.WithLoggerProvider(provider)),
		}
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

func newHandler(level slog.Level, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "json":
		return slog.NewJSONHandler(os.Stderr, opts), nil
	case "text", "":
		return slog.NewTextHandler(os.Stderr, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

// exporterFromEnv selects an exporter from the standard OpenTelemetry
// environment variables. Returns nil when none is configured.
func exporterFromEnv() (sdklog.Exporter, error) {
	if os.Getenv("OTEL_LOGS_EXPORTER") == "console" {
		return stdoutlog.New()
	}
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" &&
		os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT") == "" {
		return nil, nil
	}

	// Both OTLP exporters read endpoint and headers from the environment
	// themselves.
	switch os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL") {
	case "grpc":
		return otlploggrpc.New(context.Background())
	default:
		return otlploghttp.New(context.Background())
	}
}

// minSeverity maps a slog level to the exporter-side severity floor.
func minSeverity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}

// fanoutHandler dispatches each record to every wrapped handler.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanoutHandler, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	next := make(fanoutHandler, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}
