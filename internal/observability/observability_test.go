package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"go.opentelemetry.io/contrib/processors/minsev"
)

func TestNewHandler(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{format: "text"},
		{format: "json"},
		{format: ""},
		{format: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("format "+tt.format, func(t *testing.T) {
			handler, err := newHandler(slog.LevelInfo, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("newHandler(%q) succeeded, want error", tt.format)
				}
				return
			}
			if err != nil {
				t.Fatalf("newHandler(%q): %v", tt.format, err)
			}
			if handler.Enabled(context.Background(), slog.LevelDebug) {
				t.Error("debug enabled at info level")
			}
			if !handler.Enabled(context.Background(), slog.LevelInfo) {
				t.Error("info disabled at info level")
			}
		})
	}
}

func TestExporterFromEnvUnconfigured(t *testing.T) {
	t.Setenv("OTEL_LOGS_EXPORTER", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", "")

	exporter, err := exporterFromEnv()
	if err != nil {
		t.Fatalf("exporterFromEnv: %v", err)
	}
	if exporter != nil {
		t.Error("exporter created without any OTEL configuration")
	}
}

func TestMinSeverity(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  minsev.Severity
	}{
		{slog.LevelDebug, minsev.SeverityDebug},
		{slog.LevelInfo, minsev.SeverityInfo},
		{slog.LevelWarn, minsev.SeverityWarn},
		{slog.LevelError, minsev.SeverityError},
	}
	for _, tt := range tests {
		if got := minSeverity(tt.level); got != tt.want {
			t.Errorf("minSeverity(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestFanoutHandler(t *testing.T) {
	var a, b bytes.Buffer
	fanout := fanoutHandler{
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}

	logger := slog.New(fanout)
	logger.Info("hello")

	if a.Len() == 0 {
		t.Error("info record not delivered to info-level handler")
	}
	if b.Len() != 0 {
		t.Error("info record delivered to error-level handler")
	}
}
