package testutil

import (
	"context"
	"log/slog"
	"sync"
)

// TestLogHandler records every log record. Handlers derived with WithAttrs
// or WithGroup share the parent's records.
type TestLogHandler struct {
	store *recordStore
	attrs []slog.Attr
	group string
}

type recordStore struct {
	mu      sync.Mutex
	records []TestLogRecord
}

type TestLogRecord struct {
	Level   slog.Level
	Message string
	// Attrs is keyed by the attribute key, prefixed with "group." when the
	// record was logged through a group.
	Attrs map[string]any
}

func NewTestLogHandler() *TestLogHandler {
	return &TestLogHandler{store: &recordStore{}}
}

func (h *TestLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func (h *TestLogHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+record.NumAttrs())
	for _, attr := range h.attrs {
		attrs[attr.Key] = attr.Value.Any()
	}
	record.Attrs(func(attr slog.Attr) bool {
		attrs[h.key(attr.Key)] = attr.Value.Any()
		return true
	})

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.records = append(h.store.records, TestLogRecord{
		Level:   record.Level,
		Message: record.Message,
		Attrs:   attrs,
	})

	return nil
}

func (h *TestLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, attr := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.key(attr.Key), Value: attr.Value})
	}
	return &next
}

func (h *TestLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = h.key(name)
	return &next
}

func (h *TestLogHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func (h *TestLogHandler) GetRecords() []TestLogRecord {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return append([]TestLogRecord(nil), h.store.records...)
}

func (h *TestLogHandler) GetRecordsByLevel(level slog.Level) []TestLogRecord {
	var filtered []TestLogRecord
	for _, record := range h.GetRecords() {
		if record.Level == level {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

func (h *TestLogHandler) Reset() {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.records = h.store.records[:0]
}

func (h *TestLogHandler) ContainsMessage(level slog.Level, message string) bool {
	records := h.GetRecordsByLevel(level)
	for _, record := range records {
		if record.Message == message {
			return true
		}
	}
	return false
}

func (h *TestLogHandler) CountByLevel(level slog.Level) int {
	return len(h.GetRecordsByLevel(level))
}

// NewTestLogger returns a logger that records into the returned handler.
func NewTestLogger() (*slog.Logger, *TestLogHandler) {
	h := NewTestLogHandler()
	return slog.New(h), h
}

// ContainsAttr reports whether a record with message has attribute key set to value.
func (h *TestLogHandler) ContainsAttr(message, key string, value any) bool {
	for _, record := range h.GetRecords() {
		if record.Message == message && record.Attrs[key] == value {
			return true
		}
	}
	return false
}
