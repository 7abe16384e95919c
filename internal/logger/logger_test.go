package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapter_FieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewZapAdapter(zap.New(core))

	log.Debug("hidden", nil)
	log.With(map[string]interface{}{"session_id": "abc"}).
		WithError(errors.New("boom")).
		Warn("search failed", map[string]interface{}{"results": 0})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "search failed", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "abc", fields["session_id"])
	assert.Equal(t, "boom", fields["error"])
	assert.EqualValues(t, 0, fields["results"])
}

func TestNew_Levels(t *testing.T) {
	assert.True(t, New("debug", "console").Core().Enabled(zapcore.DebugLevel))
	assert.False(t, New("warn", "json").Core().Enabled(zapcore.InfoLevel))
	assert.True(t, New("bogus", "json").Core().Enabled(zapcore.InfoLevel))
}

func TestNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.With(nil).Error("ignored", map[string]interface{}{"k": "v"})
	})
}
