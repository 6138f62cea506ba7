package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(t *testing.T, buf *bytes.Buffer) Logger {
	t.Helper()
	l, err := NewWithWriter(&Config{Level: DebugLevel, Format: JSONFormat, Output: StdoutOutput}, buf)
	require.NoError(t, err)
	return l
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default", *DefaultConfig(), false},
		{"server", *ServerConfig(), false},
		{"bad level", Config{Level: "loud", Format: TextFormat, Output: StdoutOutput}, true},
		{"bad format", Config{Level: InfoLevel, Format: "xml", Output: StdoutOutput}, true},
		{"file without path", Config{Level: InfoLevel, Format: TextFormat, Output: FileOutput}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "Validate() error = %v", err)
		})
	}
}

func TestFieldsSurviveChaining(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(t, &buf)

	l.WithComponent("reconciler").WithField("batch_id", "batch_7").WithError(errors.New("boom")).Error("update failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "reconciler", entry["component"])
	assert.Equal(t, "batch_7", entry["batch_id"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "update failed", entry["msg"])
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(t, &buf)

	err := TimedOperation("seed", l, func() error { return errors.New("bad file") })
	require.Error(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var last map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, "error", last["status"])
	assert.Equal(t, "seed", last["operation"])
}

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(ProgressConfig{Operation: "sync", Total: 4, Logger: newJSONLogger(t, &buf)})

	tracker.Increment()
	tracker.Increment()

	stats := tracker.Stats()
	assert.Equal(t, 2, stats.Current)
	assert.InDelta(t, 50.0, stats.Percentage, 0.001)
	assert.Contains(t, stats.String(), "sync: 2/4")

	tracker.Complete()
	assert.Contains(t, buf.String(), "Operation completed")
}
