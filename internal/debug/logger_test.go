package debug

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggingIsOffByDefault(t *testing.T) {
	assert.NotPanics(t, func() { Debug("nothing", "k", 1) })
}

func TestSetOutput(t *testing.T) {
	defer Init(false)

	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelDebug)
	assert.True(t, Enabled())
	Debug("query compiled", "fingerprint", "abc")
	assert.Contains(t, buf.String(), "query compiled")
	assert.Contains(t, buf.String(), "fingerprint=abc")

	buf.Reset()
	SetOutput(&buf, slog.LevelWarn)
	assert.False(t, Enabled())
	Debug("hidden")
	Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	Init(false)
	assert.False(t, Enabled())
}
