package azproxy

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level LogLevel) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewLoggerWithZap(level, zap.New(core)), logs
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LogLevelDebug, "DEBUG"},
		{LogLevelInfo, "INFO"},
		{LogLevelWarn, "WARN"},
		{LogLevelError, "ERROR"},
		{LogLevelOff, "OFF"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		if got := test.level.String(); got != test.expected {
			t.Errorf("LogLevel(%d).String() = %q, want %q", test.level, got, test.expected)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"DEBUG", LogLevelDebug},
		{"debug", LogLevelDebug},
		{"INFO", LogLevelInfo},
		{"WARN", LogLevelWarn},
		{"WARNING", LogLevelWarn},
		{"error", LogLevelError},
		{"off", LogLevelOff},
		{"invalid", LogLevelInfo}, // default
		{"", LogLevelInfo},        // default
	}

	for _, test := range tests {
		if got := ParseLogLevel(test.input); got != test.expected {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", test.input, got, test.expected)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	log, logs := observed(LogLevelWarn)

	log.Debug("debug_event", nil)
	log.Info("info_event", nil)
	log.Warn("warn_event", map[string]any{"k": "v"})
	log.Error("error_event", nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "warn_event" || entries[0].Level != zapcore.WarnLevel {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[0].ContextMap()["k"] != "v" {
		t.Errorf("expected field k=v, got %v", entries[0].ContextMap())
	}
	if entries[1].Message != "error_event" || entries[1].Level != zapcore.ErrorLevel {
		t.Errorf("unexpected second entry %+v", entries[1])
	}

	log.SetLevel(LogLevelOff)
	log.Error("silenced", nil)
	if logs.Len() != 2 {
		t.Errorf("LogLevelOff should drop everything, got %d entries", logs.Len())
	}
}

func TestLogger_ErrorFieldsAndNames(t *testing.T) {
	log, logs := observed(LogLevelDebug)

	log.Named("token").Error("token_refresh_failed", map[string]any{"err": errors.New("boom")})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "azproxy.token" {
		t.Errorf("expected logger name azproxy.token, got %q", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["err"] != "boom" {
		t.Errorf("expected err field boom, got %v", entries[0].ContextMap()["err"])
	}
}

func TestContextualLogger(t *testing.T) {
	log, logs := observed(LogLevelDebug)

	cl := log.WithContext(map[string]any{"relay_id": "r1", "shared": "ctx"})
	cl.Info("frame", map[string]any{"shared": "msg"})

	m := logs.All()[0].ContextMap()
	if m["relay_id"] != "r1" {
		t.Errorf("expected context field relay_id, got %v", m)
	}
	if m["shared"] != "msg" {
		t.Errorf("message field should override context, got %v", m["shared"])
	}
}

func TestNilAndNopLogger(t *testing.T) {
	var l *Logger
	l.Info("ignored", nil)

	NopLogger().Error("ignored", map[string]any{"a": 1})
}
