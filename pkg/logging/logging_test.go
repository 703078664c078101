package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameToLevel_ValidNames(t *testing.T) {
	cases := map[string]Level{
		"disabled": LevelDisabled,
		"error":    LevelError,
		"warn":     LevelWarn,
		"info":     LevelInfo,
		"debug":    LevelDebug,
	}
	for name, want := range cases {
		level, ok := NameToLevel(name)
		require.True(t, ok)
		assert.Equal(t, want, level)
	}
}

func TestNameToLevel_InvalidNameReturnsDisabledAndFalse(t *testing.T) {
	level, ok := NameToLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, LevelDisabled, level)
}

func TestLevel_StringRendersEveryKnownLevel(t *testing.T) {
	assert.Equal(t, "disabled", LevelDisabled.String())
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "info", LevelInfo.String())
	assert.Equal(t, "debug", LevelDebug.String())
}

func TestLogger_NilReceiverMethodsDoNotPanic(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Print("x")
		l.Printf("%s", "x")
		l.Println("x")
		l.Debug("x")
		l.Debugf("%s", "x")
		l.Warn(assert.AnError)
		l.Error(assert.AnError)
		l.Infow("msg", Fields{"a": 1})
		l.Warnw("msg", Fields{"a": 1})
		l.Errorw("msg", Fields{"a": 1})
		_ = l.Sublogger("child")
		_, _ = l.Writer().Write([]byte("line\n"))
	})
}

func TestLogger_SubloggerNestsPrefixes(t *testing.T) {
	root := &Logger{}
	child := root.Sublogger("parent").Sublogger("child")
	assert.Equal(t, "parent.child", child.prefix)
}

func TestFields_RenderIsSortedByKey(t *testing.T) {
	fields := Fields{"b": 2, "a": 1}
	assert.Equal(t, " a=1 b=2", fields.render())
}

func TestFields_RenderEmptyIsEmptyString(t *testing.T) {
	assert.Equal(t, "", Fields(nil).render())
}

func TestWriter_SplitsMultilineWritesIntoCallbacks(t *testing.T) {
	var lines []string
	w := &writer{callback: func(s string) { lines = append(lines, s) }}

	n, err := w.Write([]byte("first\nsecond\nthird"))
	require.NoError(t, err)
	assert.Equal(t, len("first\nsecond\nthird"), n)
	assert.Equal(t, []string{"first", "second"}, lines)

	_, err = w.Write([]byte(" line\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third line"}, lines)
}

func TestWriter_TrimsTrailingCarriageReturn(t *testing.T) {
	var lines []string
	w := &writer{callback: func(s string) { lines = append(lines, s) }}
	_, err := w.Write([]byte("crlf\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"crlf"}, lines)
}
