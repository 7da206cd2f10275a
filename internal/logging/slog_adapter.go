// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogHandler bridges log/slog into zerolog. sutureslog reports service
// restarts and backoff through it, so supervisor events land in the same
// JSON stream as the sync cycles.
type SlogHandler struct {
	logger zerolog.Logger
	prefix string // dotted group path, "" at top level
}

// NewSlogHandler wraps the global logger.
func NewSlogHandler() *SlogHandler {
	return NewSlogHandlerWithLogger(Logger())
}

// NewSlogHandlerWithLogger wraps logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSlogHandlerWithLogger(logger zerolog.Logger) *SlogHandler {
	return &SlogHandler{logger: logger}
}

// NewSlogLogger returns an slog.Logger tagged with component=supervisor.
func NewSlogLogger() *slog.Logger {
	return slog.New(NewSlogHandlerWithLogger(WithComponent("supervisor")))
}

func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return zerologLevel(level) >= h.logger.GetLevel()
}

//nolint:gocritic // slog.Record is passed by value per slog.Handler interface
func (h *SlogHandler) Handle(ctx context.Context, record slog.Record) error {
	event := h.logger.WithLevel(zerologLevel(record.Level))
	if event == nil {
		return nil
	}
	if id := CorrelationIDFromContext(ctx); id != "" {
		event = event.Str("correlation_id", id)
	}
	record.Attrs(func(a slog.Attr) bool {
		appendAttr(event, h.prefix, a)
		return true
	})
	event.Msg(record.Message)
	return nil
}

// WithAttrs bakes attrs into a child zerolog context, so they are encoded
// once rather than on every record.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.logger.With()
	for _, a := range attrs {
		c = c.Fields(flatten(h.prefix, a, nil))
	}
	return &SlogHandler{logger: c.Logger(), prefix: h.prefix}
}

func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SlogHandler{logger: h.logger, prefix: join(h.prefix, name)}
}

func appendAttr(event *zerolog.Event, prefix string, a slog.Attr) {
	event.Fields(flatten(prefix, a, nil))
}

// flatten renders a into key/value pairs with dotted keys for groups.
// LogValuers are resolved first.
func flatten(prefix string, a slog.Attr, out []interface{}) []interface{} {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return out
	}
	key := join(prefix, a.Key)
	switch v.Kind() {
	case slog.KindGroup:
		for _, ga := range v.Group() {
			// An unnamed group inlines its members.
			out = flatten(key, ga, out)
		}
	case slog.KindString:
		out = append(out, key, v.String())
	case slog.KindInt64:
		out = append(out, key, v.Int64())
	case slog.KindUint64:
		out = append(out, key, v.Uint64())
	case slog.KindFloat64:
		out = append(out, key, v.Float64())
	case slog.KindBool:
		out = append(out, key, v.Bool())
	case slog.KindDuration:
		out = append(out, key, v.Duration())
	case slog.KindTime:
		out = append(out, key, v.Time())
	default:
		if err, ok := v.Any().(error); ok {
			out = append(out, key, err.Error())
		} else {
			out = append(out, key, v.Any())
		}
	}
	return out
}

func join(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "." + key
	}
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	case level >= slog.LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
