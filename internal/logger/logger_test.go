package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("production by default", func(t *testing.T) {
		log, err := New(false)
		require.NoError(t, err)
		require.NotNil(t, log)

		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("development when debug", func(t *testing.T) {
		log, err := New(true)
		require.NoError(t, err)
		require.NotNil(t, log)

		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})
}
