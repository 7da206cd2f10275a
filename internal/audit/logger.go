// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package audit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/fingersync/internal/logging"
)

// Config holds configuration for the audit logger.
type Config struct {
	Enabled bool

	// BufferSize is the size of the async write buffer.
	BufferSize int

	// LogToStdout also writes every event through the application logger.
	LogToStdout bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:     true,
		BufferSize:  256,
		LogToStdout: true,
	}
}

// Logger is the audit logging service.
type Logger struct {
	config    *Config
	store     Store
	eventChan chan *Event
	mu        sync.RWMutex
	closeOnce sync.Once
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewLogger creates a logger and starts its writer. Close it on shutdown.
func NewLogger(store Store, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}

	l := &Logger{
		config:    config,
		store:     store,
		eventChan: make(chan *Event, config.BufferSize),
		stopChan:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.asyncWriter()

	return l
}

func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			// Drain remaining events
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.eventChan:
			l.writeEvent(event)
		}
	}
}

func (l *Logger) writeEvent(event *Event) {
	l.mu.RLock()
	config := l.config
	l.mu.RUnlock()

	if config.LogToStdout {
		l.logToStdout(event)
	}

	if l.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := l.store.Save(ctx, event); err != nil {
			logging.Error().Err(err).Msg("Failed to save audit event")
		}
	}
}

func (l *Logger) logToStdout(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal audit event")
		return
	}
	logging.Info().RawJSON("event", data).Msg("Audit event")
}

// Log records an audit event. It never blocks: when the buffer is full the
// event is dropped with a warning.
func (l *Logger) Log(event *Event) {
	l.mu.RLock()
	enabled := l.config.Enabled
	l.mu.RUnlock()
	if !enabled {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case l.eventChan <- event:
	default:
		logging.Warn().Str("event_id", event.ID).Msg("Audit event buffer full, dropping event")
	}
}

// Close flushes buffered events and stops the writer. It is safe to call
// more than once.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
	})
	return nil
}

// Query retrieves events matching the filter.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Count returns the number of events matching the filter.
func (l *Logger) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return l.store.Count(ctx, filter)
}

// SetEnabled enables or disables audit logging.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Enabled = enabled
}

// LogCycleTrigger records a manual cycle trigger. status is the cycle
// status, or empty when the trigger was refused.
func (l *Logger) LogCycleTrigger(ctx context.Context, source Source, status string, err error) {
	event := &Event{
		Type:        EventTypeCycleTriggered,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Source:      source,
		Target:      &Target{ID: "cycle", Type: "cycle"},
		Action:      "trigger",
		Description: "Manual cycle triggered",
		Metadata:    mustJSON(map[string]string{"status": status}),
		RequestID:   logging.CorrelationIDFromContext(ctx),
	}
	if err != nil {
		event.Outcome = OutcomeFailure
		event.Severity = SeverityWarning
		event.Description = "Manual cycle failed: " + err.Error()
	}
	l.Log(event)
}

// CleanupSummary is the outcome of one on-demand employee cleanup.
type CleanupSummary struct {
	EmployeeID            string `json:"employee_id"`
	DryRun                bool   `json:"dry_run"`
	Action                string `json:"action,omitempty"`
	Processed             int    `json:"processed"`
	Failed                int    `json:"failed"`
	HRFingerprintsDeleted int    `json:"hr_fingerprints_deleted"`
}

// LogEmployeeCleanup records an on-demand Left cleanup. Real runs are
// critical because they delete biometric data.
func (l *Logger) LogEmployeeCleanup(ctx context.Context, source Source, summary CleanupSummary, err error) {
	event := &Event{
		Type:        EventTypeEmployeeCleanup,
		Severity:    SeverityCritical,
		Outcome:     OutcomeSuccess,
		Source:      source,
		Target:      &Target{ID: summary.EmployeeID, Type: "employee"},
		Action:      "cleanup",
		Description: "Left employee cleaned from terminals",
		Metadata:    mustJSON(summary),
		RequestID:   logging.CorrelationIDFromContext(ctx),
	}
	if summary.DryRun {
		event.Type = EventTypeEmployeeCleanupDryRun
		event.Severity = SeverityInfo
		event.Description = "Left employee cleanup planned (dry run)"
	}
	switch {
	case err != nil:
		event.Outcome = OutcomeFailure
		event.Severity = SeverityWarning
		event.Description = "Left employee cleanup failed: " + err.Error()
	case summary.Failed > 0:
		event.Outcome = OutcomeFailure
		event.Description = "Left employee cleanup reached no terminal"
	}
	l.Log(event)
}

// mustJSON converts a value to JSON, returning empty object on error.
func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

// SourceFromRequest creates a Source from an HTTP request. RemoteAddr is
// already rewritten by the RealIP middleware.
func SourceFromRequest(r *http.Request) Source {
	return Source{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}
