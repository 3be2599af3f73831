package zaplogger

import (
	"errors"
	"testing"

	"github.com/Zhima-Mochi/minishop-vending/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerWritesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := New(zap.New(core), observability.F("service", "vending"))

	logger.With(observability.F("slot", "A1")).Info("use_case_done",
		observability.F("change", 10),
		observability.F("error", errors.New("boom")),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "use_case_done", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "vending", ctx["service"])
	assert.Equal(t, "A1", ctx["slot"])
	assert.EqualValues(t, 10, ctx["change"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := New(zap.New(core))

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	assert.Equal(t, 2, logs.Len())
}

func TestNewNilLogger(t *testing.T) {
	logger := New(nil)
	logger.Info("dropped")
	assert.NoError(t, logger.Sync())
}
