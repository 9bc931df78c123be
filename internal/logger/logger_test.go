package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		log, err := NewLogger("warn", "json")
		assert.NoError(t, err)
		assert.NotNil(t, log)
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("Console", func(t *testing.T) {
		log, err := NewLogger("debug", "console")
		assert.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		log, err := NewLogger("loud", "json")
		assert.Error(t, err)
		assert.Nil(t, log)
	})
}

func TestNewLogger_EmptyLevelIsInfo(t *testing.T) {
	log, err := NewLogger("", "console")

	assert.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewCLILogger(t *testing.T) {
	testCases := []struct {
		name  string
		level string
		want  zapcore.Level
	}{
		{name: "DebugRaisedToWarn", level: "debug", want: zapcore.WarnLevel},
		{name: "Empty", level: "", want: zapcore.WarnLevel},
		{name: "ErrorKept", level: "error", want: zapcore.ErrorLevel},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			log, err := NewCLILogger(tc.level)

			assert.NoError(t, err)
			assert.True(t, log.Core().Enabled(tc.want))
			assert.False(t, log.Core().Enabled(tc.want-1))
		})
	}

	_, err := NewCLILogger("loud")
	assert.Error(t, err)
}
