package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuild_Levels(t *testing.T) {
	l, err := Build(Options{Level: "WARN", Environment: "production"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = Build(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestSetAndWith(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(zap.NewNop()) })

	With(zap.String("execution_id", "abc")).Info("stage started")
	S().Infow("sugared", "stage", "consensus")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "abc", entries[0].ContextMap()["execution_id"])
	assert.Equal(t, "consensus", entries[1].ContextMap()["stage"])
}

func TestOrDefault(t *testing.T) {
	l := zap.NewNop()
	assert.Same(t, l, OrDefault(l))
	assert.NotNil(t, OrDefault(nil))
}
