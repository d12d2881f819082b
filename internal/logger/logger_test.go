package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestRedactsSecrets(t *testing.T) {
	l, logs := newObserved()
	l.Info("calling api", "api_access_token", "abc", "Authorization", "Bearer x", "chat", "42")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["api_access_token"] != "[REDACTED]" || fields["Authorization"] != "[REDACTED]" {
		t.Errorf("secrets not redacted: %v", fields)
	}
	if fields["chat"] != "42" {
		t.Errorf("plain field changed: %v", fields)
	}
}

func TestWithCarriesFields(t *testing.T) {
	l, logs := newObserved()
	l.With("component", "router", "bot_token", "t").Warn("dropped")

	fields := logs.All()[0].ContextMap()
	if fields["component"] != "router" || fields["bot_token"] != "[REDACTED]" {
		t.Errorf("unexpected fields %v", fields)
	}
}

func TestOddKeyValues(t *testing.T) {
	got := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(got) != 3 || got[2] != "dangling" {
		t.Errorf("unexpected %v", got)
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"dev", "prod", ""} {
		l, err := New(mode)
		if err != nil || l == nil {
			t.Fatalf("New(%q) failed: %v", mode, err)
		}
	}
}
