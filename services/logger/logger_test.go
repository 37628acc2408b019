package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/user"
)

func newObservedLogger(t *testing.T) (*Logger, *observer.ObservedLogs) {
	t.Helper()
	obs, logs := observer.New(zapcore.DebugLevel)
	return NewLogger(zap.New(obs), core.NewTestConfig()), logs
}

func TestLogger_Fields(t *testing.T) {
	l, logs := newObservedLogger(t)
	usr := user.User{ID: "42", Username: "jane"}

	l.Error("boom", errors.New("db down"), map[string]interface{}{"path": "/v1/users"}, usr, 7)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "boom", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "db down", ctx["error"])
	assert.Equal(t, "/v1/users", ctx["path"])
	assert.Equal(t, "42", ctx["user_id"])
	assert.Equal(t, "jane", ctx["username"])
	assert.EqualValues(t, 7, ctx["arg3"])
}

func TestLogger_Levels(t *testing.T) {
	l, logs := newObservedLogger(t)

	l.Debug("d")
	l.Info("i")
	l.Warn("w", nil)
	l.Named("db").Info("named")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Empty(t, entries[2].Context)
	assert.Equal(t, "db", entries[3].LoggerName)
}

func TestNewZap(t *testing.T) {
	conf := core.NewTestConfig()
	conf.LogLevel = "warn"
	zl, err := NewZap(conf)
	require.NoError(t, err)
	assert.False(t, zl.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, zl.Core().Enabled(zapcore.WarnLevel))

	conf.LogLevel = "nonsense"
	zl, err = NewZap(conf)
	require.NoError(t, err)
	assert.True(t, zl.Core().Enabled(zapcore.InfoLevel))
}
