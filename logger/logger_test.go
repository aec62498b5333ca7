package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug": LevelDebug, "INFO": LevelInfo, "": LevelInfo,
		"warn": LevelWarn, "Warning": LevelWarn, "error": LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "LEVEL(9)", Level(9).String())
}

func TestLoggerLevelsAndOutputs(t *testing.T) {
	Init("", false)

	var out bytes.Buffer
	require.NoError(t, AddOutput(&out))
	defer func() { _ = RemoveOutput(&out) }()
	require.NoError(t, SetLevel(LevelInfo))
	defer func() { _ = SetLevel(LevelDebug) }()

	Debugf("hidden %d", 1)
	Infof("shown %d", 2)
	Warnf("careful")
	WithNode("n1", LevelError)("boom: %s", "disk")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "INFO  shown 2", lines[0])
	assert.Equal(t, "WARN  careful", lines[1])
	assert.Equal(t, "ERROR [n1] boom: disk", lines[2])

	require.NoError(t, RemoveOutput(&out))
	Infof("after removal")
	assert.NotContains(t, out.String(), "after removal")
}

func TestLogBufferRing(t *testing.T) {
	lb := NewLogBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		lb.Add("INFO", "n", msg)
	}
	require.Equal(t, 3, lb.Len())

	all := lb.GetAll()
	assert.Equal(t, "b", all[0].Message)
	assert.Equal(t, "d", all[2].Message)

	recent := lb.GetRecent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Message)
	assert.Len(t, lb.GetRecent(10), 3)
	assert.Empty(t, lb.GetRecent(-1))

	lb.Clear()
	assert.Zero(t, lb.Len())
}

func TestFormatLogEntry(t *testing.T) {
	entry := LogEntry{
		Timestamp: time.Date(2024, 1, 2, 13, 4, 5, 0, time.UTC),
		Level:     "WARN",
		NodeID:    "a",
		Message:   "dropped",
	}
	assert.Equal(t, "[13:04:05] WARN  a: dropped", FormatLogEntry(entry))
}

func TestLogBufferWriterParsesLines(t *testing.T) {
	lb := NewLogBuffer(10)
	w := NewLogBufferWriter(lb)

	_, err := w.Write([]byte("12:00:00.000 INFO  [a] started\nWARN  [b] partial"))
	require.NoError(t, err)
	require.Equal(t, 1, lb.Len())

	_, err = w.Write([]byte(" line\nplain text\n\n"))
	require.NoError(t, err)

	entries := lb.GetAll()
	require.Len(t, entries, 3)

	assert.Equal(t, LogEntry{Level: "INFO", NodeID: "a", Message: "started"}, stripTime(entries[0]))
	assert.Equal(t, LogEntry{Level: "WARN", NodeID: "b", Message: "partial line"}, stripTime(entries[1]))
	assert.Equal(t, LogEntry{Level: "INFO", NodeID: "system", Message: "plain text"}, stripTime(entries[2]))
}

func stripTime(e LogEntry) LogEntry {
	e.Timestamp = time.Time{}
	return e
}
