package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(title, message string, kind Kind) {
	m.Called(title, message, kind)
}

func TestFanout(t *testing.T) {
	// Arrange
	first, second := new(MockNotifier), new(MockNotifier)
	first.On("Notify", "Success", "Invested $100.00 in BTC", Success).Return()
	second.On("Notify", "Success", "Invested $100.00 in BTC", Success).Return()
	f := Fanout{first, nil, second}

	// Act
	f.Notify("Success", "Invested $100.00 in BTC", Success)

	// Assert
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	n := NewLogNotifier(zap.New(core))

	n.Notify("Success", "Sold BTC for $100.00", Success)
	n.Notify("Restricted", "Only profits can be withdrawn.", Error)

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
		assert.Equal(t, "Sold BTC for $100.00", entries[0].Message)
		assert.Equal(t, "notify", entries[0].LoggerName)
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
		assert.Equal(t, "Restricted", entries[1].ContextMap()["title"])
	}
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard.Notify("x", "y", Error) })
}
