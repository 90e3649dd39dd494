package logging

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogrus(t *testing.T) (*LogrusLogger, *test.Hook) {
	t.Helper()
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	return NewLogrusLogger(logrus.NewEntry(l)), hook
}

func TestLogrusLogger_LevelsAndFields(t *testing.T) {
	log, hook := newTestLogrus(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	entries := hook.AllEntries()
	require.Len(t, entries, 4)

	assert.Equal(t, logrus.DebugLevel, entries[0].Level)
	assert.Equal(t, "dbg", entries[0].Message)
	assert.Equal(t, 1, entries[0].Data["a"])

	assert.Equal(t, logrus.InfoLevel, entries[1].Level)
	assert.Equal(t, logrus.WarnLevel, entries[2].Level)
	assert.Equal(t, logrus.ErrorLevel, entries[3].Level)
	assert.Equal(t, 4, entries[3].Data["d"])
}

func TestLogrusLogger_With(t *testing.T) {
	log, hook := newTestLogrus(t)

	log.With("module", "rest", "req_id", "r-1").Info(context.Background(), "hello", "k", "v")

	e := hook.LastEntry()
	require.NotNil(t, e)
	assert.Equal(t, "rest", e.Data["module"])
	assert.Equal(t, "r-1", e.Data["req_id"])
	assert.Equal(t, "v", e.Data["k"])
}

func TestToFields_OddArgs(t *testing.T) {
	f := toFields([]any{"a", 1, 42, "x", "dangling"})
	assert.Equal(t, 1, f["a"])
	assert.Equal(t, "x", f["42"])
	assert.Equal(t, "dangling", f["!BADKEY"])
}
