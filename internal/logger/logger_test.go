package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_StdTextOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{
		Service: "demo",
		Version: "v0.0.1",
		Env:     EnvDev,
		Backend: BackendStd,
		Level:   slog.LevelDebug,
		Output:  &buf,
	})

	slog.Info("Hello world")

	out := buf.String()
	require.NotContains(t, out, "{")
	require.Contains(t, out, "Hello world")
	require.Contains(t, out, "service=demo")
	require.Contains(t, out, "env=dev")
	require.Contains(t, out, "instance_id=")
}

func TestInit_ZapJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{
		Service: "demo",
		Env:     EnvProd,
		Output:  &buf,
	})

	slog.Info("json please", "k", "v")

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &m))
	require.Equal(t, "json please", m["msg"])
	require.Equal(t, "demo", m["service"])
	require.Equal(t, "v", m["k"])
}

func TestInit_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Env: EnvDev, Backend: BackendStd, Level: slog.LevelWarn, Output: &buf})

	slog.Info("hidden")
	slog.Warn("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestFromContext_TraceIDs(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Env: EnvProd, Backend: BackendZap, Output: &buf})

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	FromContext(ctx).InfoContext(ctx, "with trace")

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &m))
	require.Equal(t, span.SpanContext().TraceID().String(), m["trace_id"])
	require.Equal(t, span.SpanContext().SpanID().String(), m["span_id"])
}

func TestFromContext_Fallback(t *testing.T) {
	var buf bytes.Buffer
	base := Init(Config{Env: EnvDev, Backend: BackendStd, Output: &buf})

	require.Same(t, base, FromContext(context.Background()))

	scoped := base.With("conn", "c1")
	ctx := WithContext(context.Background(), scoped)
	FromContext(ctx).Info("scoped")
	require.Contains(t, buf.String(), "conn=c1")
}

func TestParseEnvAndLevel(t *testing.T) {
	require.Equal(t, EnvProd, ParseEnv(" Production "))
	require.Equal(t, EnvStage, ParseEnv("staging"))
	require.Equal(t, EnvDev, ParseEnv(""))

	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestDetectEnv_ChatEnvWins(t *testing.T) {
	t.Setenv("APP_ENV", "stage")
	t.Setenv("CHAT_ENV", "prod")
	require.Equal(t, EnvProd, DetectEnv())

	t.Setenv("CHAT_ENV", " ")
	require.Equal(t, EnvStage, DetectEnv())

	t.Setenv("APP_ENV", "")
	require.Equal(t, EnvDev, DetectEnv())
}

func TestInit_StdJSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Env: EnvStage, Backend: BackendStd, AddSource: true, Output: &buf})

	slog.Info("structured")

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &m))
	require.Equal(t, "structured", m["msg"])
	require.Equal(t, DefaultService, m["service"])
	require.Regexp(t, `^logger_test\.go:\d+$`, m["source"])
}

func TestInit_ZapNamedAfterService(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Env: EnvProd, Output: &buf})

	slog.Warn("named")

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &m))
	require.Equal(t, DefaultService, m["logger"])
	require.Equal(t, "warn", m["level"])
}
