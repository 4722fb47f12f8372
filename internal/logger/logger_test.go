package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, WarnLevel)

	l.Info("should be dropped")
	assert.Empty(t, buf.String())

	l.Warn("should appear", String("k", "v"))
	assert.Contains(t, buf.String(), "should appear")
}

func TestStructuredLoggerEntryFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, DebugLevel)

	l.Info("connect", String("client", "abc"), Int("attempt", 2))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "connect", entry["message"])
	assert.Equal(t, "abc", entry["client"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestWithFieldsAccumulates(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&buf, DebugLevel)
	scoped := base.WithFields(String("server", "s1"))

	scoped.Info("hello")
	assert.True(t, strings.Contains(buf.String(), `"server":"s1"`))
}

func TestErrorFieldHandlesNil(t *testing.T) {
	f := Error(nil)
	assert.Nil(t, f.Value)
}
