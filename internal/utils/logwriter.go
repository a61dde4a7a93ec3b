package utils

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"stackctl/pkg/logging"
)

// logWriter is an io.Writer that forwards complete lines of child process
// output to the logger.
type logWriter struct {
	subsystem string
	asError   bool // true for stderr

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLogWriter returns a writer that logs each line under subsystem. Stdout
// goes to debug, stderr to warn.
func NewLogWriter(subsystem string, asError bool) io.Writer {
	return &logWriter{subsystem: subsystem, asError: asError}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line; keep it for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.emit(line)
	}
	return len(p), nil
}

func (w *logWriter) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	if w.asError {
		logging.Warn(w.subsystem, "%s", line)
		return
	}
	logging.Debug(w.subsystem, "%s", line)
}
