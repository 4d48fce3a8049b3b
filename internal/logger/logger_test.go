package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetVerbose(t *testing.T) {
	defer SetVerbose(false)

	SetVerbose(true)
	assert.True(t, Verbose())

	SetVerbose(false)
	assert.False(t, Verbose())
}

func TestSetLevel(t *testing.T) {
	defer SetVerbose(false)

	require.NoError(t, SetLevel("debug"))
	assert.True(t, Verbose())

	assert.Error(t, SetLevel("chatty"))
	assert.True(t, Verbose(), "unknown level leaves the level unchanged")
}

func TestReplace(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := Replace(zap.New(core))

	Named("sync").Info("hello", zap.String("account", "a@example.com"))
	restore()

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "sync", entry.LoggerName)
	assert.Equal(t, "a@example.com", entry.ContextMap()["account"])
}

func TestMute(t *testing.T) {
	defer SetVerbose(false)
	SetVerbose(true)

	restore := Mute()
	assert.False(t, Verbose())
	assert.False(t, L().Core().Enabled(zap.ErrorLevel))

	restore()
	assert.True(t, Verbose())
}
