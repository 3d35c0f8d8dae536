package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevelDefaultsToWarn(t *testing.T) {
	assert.Equal(t, LevelWarn, ParseLevel(""))
	assert.Equal(t, LevelWarn, ParseLevel("nonsense"))
	assert.Equal(t, LevelTrace, ParseLevel("trace"))
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn)

	log.Debug("scrubbed %s from PATH", "/home/x/.fastenv/bin")
	assert.Empty(t, buf.String())

	log.Warn("shim for %s is shadowed", "node")
	assert.Contains(t, buf.String(), "[WARN fastenv] shim for node is shadowed")
}

func TestLoggerFormatsDebugLine(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug)

	log.Debug("removed %s from PATH", "/home/x/.fastenv/bin")
	assert.Equal(t, "[DEBUG fastenv] removed /home/x/.fastenv/bin from PATH\n", buf.String())
}
