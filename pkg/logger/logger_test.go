package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"spacetrack/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "st.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func newBufferLogger(level zerolog.Level) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewWithWriter(&buf, level), &buf
}

func TestLoggerMethods(t *testing.T) {
	l, buf := newBufferLogger(zerolog.DebugLevel)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	for _, msg := range []string{"debug message", "info message", "warn message", "error message"} {
		assert.Contains(t, out, msg)
	}
	assert.Contains(t, out, `"app":"spacetrack"`)
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(zerolog.WarnLevel)

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithFields(t *testing.T) {
	l, buf := newBufferLogger(zerolog.InfoLevel)

	l.WithFields(map[string]interface{}{
		"string": "value",
		"int":    42,
		"bool":   true,
	}).Info("test message")

	out := buf.String()
	assert.Contains(t, out, `"string":"value"`)
	assert.Contains(t, out, `"int":42`)
	assert.Contains(t, out, `"bool":true`)
}

func TestFieldChainingDoesNotLeak(t *testing.T) {
	l, buf := newBufferLogger(zerolog.InfoLevel)

	child := l.WithField("field1", "value1").WithField("field2", "value2")
	child.Info("chained")
	l.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"field1":"value1"`)
	assert.Contains(t, lines[0], `"field2":"value2"`)
	assert.NotContains(t, lines[1], "field1")
}

func TestWithError(t *testing.T) {
	l, buf := newBufferLogger(zerolog.InfoLevel)

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("login rejected")).Error("auth failed")
	assert.Contains(t, buf.String(), "login rejected")
}

func TestFieldTypes(t *testing.T) {
	l, buf := newBufferLogger(zerolog.InfoLevel)

	l.InfoWithFields("all types", map[string]interface{}{
		"int64":    int64(456),
		"uint64":   uint64(7),
		"float":    3.5,
		"time":     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"duration": 5 * time.Second,
		"strings":  []string{"a", "b"},
		"ints":     []int{1, 2},
		"cause":    errors.New("boom"),
		"custom":   struct{ Name string }{Name: "test"},
	})

	out := buf.String()
	assert.Contains(t, out, `"int64":456`)
	assert.Contains(t, out, `"uint64":7`)
	assert.Contains(t, out, `"strings":["a","b"]`)
	assert.Contains(t, out, `"cause":"boom"`)
	assert.Contains(t, out, `"Name":"test"`)
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "/q", 200, time.Millisecond)
	LogRequest(tl, "GET", "/q", 404, time.Millisecond)
	LogRequest(tl, "GET", "/q", 502, time.Millisecond)
	LogThrottle(tl, time.Now().Add(time.Second), time.Second)
	LogQuery(tl, "gp", "basicspacedata/query/class/gp", 10, nil)
	LogQuery(tl, "gp", "basicspacedata/query/class/gp", 0, errors.New("down"))
	LogComponentStart(tl, "server", map[string]interface{}{"port": 8080})
	LogComponentStop(tl, "server", "signal")

	assert.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 2)
	assert.True(t, tl.HasMessage("Rate limit reached, waiting for window"))
	assert.True(t, tl.HasMessage("Component started"))

	for _, msg := range tl.GetMessages() {
		if msg.Message == "Query failed" {
			assert.EqualError(t, msg.Error, "down")
			assert.Equal(t, "gp", msg.Fields["entity"])
		}
	}
}

func TestTestLoggerDerivedFields(t *testing.T) {
	tl := NewTestLogger()

	child := tl.WithField("component", "gate").WithError(errors.New("x"))
	child.WarnWithFields("slow", map[string]interface{}{"wait": 1})

	msgs := tl.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "gate", msgs[0].Fields["component"])
	assert.Equal(t, 1, msgs[0].Fields["wait"])
	assert.EqualError(t, msgs[0].Error, "x")

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "debug"}))
	assert.NotNil(t, GetLogger())

	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	Info("info message")
	WithField("key", "value").Warn("with field")
	WithError(errors.New("test")).Error("with error")

	assert.True(t, tl.HasMessage("info message"))
	assert.True(t, tl.HasError())
}
