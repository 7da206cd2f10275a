// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	SetLogger(NewTestLogger(&buf))
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("no log output")
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", line, err)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	if !ValidLevel("warn") {
		t.Error("warn should be valid")
	}
	if ValidLevel("verbose") {
		t.Error("verbose should not be valid")
	}
}

func TestCtxAddsCorrelationAndOperation(t *testing.T) {
	buf := captureGlobal(t)

	ctx := ContextWithCorrelationID(context.Background(), "abcd1234")
	ctx = ContextWithOperation(ctx, "cleanup-left")
	Ctx(ctx).Info().Msg("cycle started")

	m := decodeLine(t, buf)
	if m["correlation_id"] != "abcd1234" {
		t.Errorf("correlation_id = %v, want abcd1234", m["correlation_id"])
	}
	if m["operation"] != "cleanup-left" {
		t.Errorf("operation = %v, want cleanup-left", m["operation"])
	}
}

func TestForDevice(t *testing.T) {
	buf := captureGlobal(t)

	l := ForDevice(context.Background(), "dev-1")
	l.Warn().Msg("unreachable")

	m := decodeLine(t, buf)
	if m["device_id"] != "dev-1" {
		t.Errorf("device_id = %v, want dev-1", m["device_id"])
	}
	if _, ok := m["correlation_id"]; ok {
		t.Error("correlation_id should be absent without one in context")
	}
}

func TestGenerateCorrelationID(t *testing.T) {
	a, b := GenerateCorrelationID(), GenerateCorrelationID()
	if len(a) != 8 {
		t.Errorf("len = %d, want 8", len(a))
	}
	if a == b {
		t.Error("two generated IDs should differ")
	}
}

func TestSlogHandlerGroupsAndLevels(t *testing.T) {
	var buf bytes.Buffer
	prevLevel := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(prevLevel)

	logger := slog.New(NewSlogHandlerWithLogger(NewTestLogger(&buf)))
	logger.WithGroup("svc").Warn("restarting", slog.String("name", "cycle-manager"), slog.Int("failures", 2))

	m := decodeLine(t, &buf)
	if m["level"] != "warn" {
		t.Errorf("level = %v, want warn", m["level"])
	}
	if m["svc.name"] != "cycle-manager" {
		t.Errorf("svc.name = %v", m["svc.name"])
	}
	if m["svc.failures"] != float64(2) {
		t.Errorf("svc.failures = %v", m["svc.failures"])
	}
}

type deviceRef string

func (d deviceRef) LogValue() slog.Value { return slog.StringValue("device-" + string(d)) }

func TestSlogHandlerAttrsAndCorrelation(t *testing.T) {
	var buf bytes.Buffer
	prevLevel := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(prevLevel)

	logger := slog.New(NewSlogHandlerWithLogger(NewTestLogger(&buf))).
		With(slog.String("supervisor", "sync-layer")).
		WithGroup("event")
	ctx := ContextWithCorrelationID(context.Background(), "abc12345")
	logger.ErrorContext(ctx, "service failed",
		slog.Any("device", deviceRef("A")),
		slog.Any("err", errorString("boom")),
		slog.Group("", slog.Int("restarts", 3)),
	)

	m := decodeLine(t, &buf)
	want := map[string]interface{}{
		"level":          "error",
		"supervisor":     "sync-layer",
		"correlation_id": "abc12345",
		"event.device":   "device-A",
		"event.err":      "boom",
		"event.restarts": float64(3),
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("%s = %v, want %v", k, m[k], v)
		}
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	h := NewSlogHandlerWithLogger(NewTestLogger(&bytes.Buffer{}).Level(zerolog.WarnLevel))
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info enabled on a warn logger")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error disabled on a warn logger")
	}
}

type errorString string

func (e errorString) Error() string { return string(e) }
