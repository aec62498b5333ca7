package logger

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"sync"
)

// LogBufferWriter is an io.Writer that feeds complete lines into a LogBuffer.
// Lines look like "LEVEL [nodeID] message"; both the level and the node tag
// are optional, untagged lines are attributed to "system".
type LogBufferWriter struct {
	buffer *LogBuffer
	buf    bytes.Buffer
	mu     sync.Mutex
}

var lineRegex = regexp.MustCompile(`^(?:\S+\s+)?(DEBUG|INFO|WARN|ERROR)\s+(?:\[([^\]]+)\]\s*)?(.*)$`)

// NewLogBufferWriter creates a new writer that writes to the log buffer
func NewLogBufferWriter(buffer *LogBuffer) *LogBufferWriter {
	return &LogBufferWriter{
		buffer: buffer,
	}
}

// Write implements io.Writer
func (lw *LogBufferWriter) Write(p []byte) (n int, err error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	lw.buf.Write(p)

	for {
		line, err := lw.buf.ReadString('\n')
		if err == io.EOF {
			// keep the partial line for the next write
			lw.buf.WriteString(line)
			break
		}
		if err != nil {
			return len(p), err
		}

		line = strings.TrimSuffix(line, "\n")
		if len(line) == 0 {
			continue
		}

		level, nodeID, message := "INFO", "system", line
		if m := lineRegex.FindStringSubmatch(line); m != nil {
			level = m[1]
			if m[2] != "" {
				nodeID = m[2]
			}
			message = m[3]
		}

		lw.buffer.Add(level, nodeID, message)
	}

	return len(p), nil
}
