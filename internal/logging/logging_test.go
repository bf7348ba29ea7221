package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "not JSON: %s", buf.String())
	return entry
}

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("scoutme", "0.1.0", "json", false, &buf)

	logger.Info("navigation allowed", "route", "home")

	entry := decode(t, &buf)
	assert.Equal(t, "navigation allowed", entry["msg"])
	assert.Equal(t, "scoutme", entry["service"])
	assert.Equal(t, "0.1.0", entry["version"])
	assert.Equal(t, "home", entry["route"])
	assert.NotContains(t, entry, "trace_id")
}

func TestSetup_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("scoutme", "0.1.0", "text", false, &buf)

	logger.Warn("token expired")

	assert.Contains(t, buf.String(), "token expired")
	assert.Contains(t, buf.String(), "service=scoutme")
}

func TestSetup_DebugLevel(t *testing.T) {
	var quiet, verbose bytes.Buffer
	Setup("scoutme", "0.1.0", "json", false, &quiet).Debug("api request")
	Setup("scoutme", "0.1.0", "json", true, &verbose).Debug("api request")

	assert.Empty(t, quiet.String())
	assert.Contains(t, verbose.String(), "api request")
}

func TestSetup_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("scoutme", "0.1.0", "json", false, &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "api response")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestSetup_WithAttrsKeepsServiceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("scoutme", "0.1.0", "json", false, &buf).With("component", "router")

	logger.Info("ready")

	entry := decode(t, &buf)
	assert.Equal(t, "router", entry["component"])
	assert.Equal(t, "scoutme", entry["service"])
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Error("dropped") })
}
