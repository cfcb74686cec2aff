package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWithCore(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewWithCore(core).With("request_id", "abc")

	log.Debug("hidden")
	log.Info("HTTP Request", "status", 200)
	log.Error("Request failed", "error", "boom")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "HTTP Request", entries[0].Message)
	assert.Equal(t, "abc", entries[0].ContextMap()["request_id"])
	assert.EqualValues(t, 200, entries[0].ContextMap()["status"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

type countingSyncer struct {
	bytes.Buffer
	syncs int
}

func (s *countingSyncer) Sync() error {
	s.syncs++
	return nil
}

func TestSyncFlushesCore(t *testing.T) {
	out := &countingSyncer{}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zapcore.EncoderConfig{MessageKey: "msg"}), out, zapcore.InfoLevel)
	log := NewWithCore(core)

	log.Info("Server started", "port", 3000)
	require.NoError(t, log.Sync())
	assert.Equal(t, 1, out.syncs)
	assert.Contains(t, out.String(), `"msg":"Server started"`)
}

func TestNewFallsBackToInfo(t *testing.T) {
	log := New(Config{Level: "not-a-level", Format: "console", Output: "stdout"})
	assert.NotNil(t, log)
	NewNop().Info("discarded")
}
