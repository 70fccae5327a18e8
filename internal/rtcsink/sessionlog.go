package rtcsink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// sessionLogger appends a timestamped line per session lifecycle event
// (created, data channel open/closed, connection state change) to a flat
// file, the same fixed-width-label shape the original connection log
// used for inbound/outbound API messages.
type sessionLogger struct {
	mu   sync.Mutex
	file *os.File
}

// newSessionLogger opens path for appending session events, creating it
// if needed but preserving prior entries across restarts. An empty path
// disables the logger; newSessionLogger then returns a nil
// *sessionLogger, which logEvent tolerates.
func newSessionLogger(path string) (*sessionLogger, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &sessionLogger{file: f}, nil
}

func (l *sessionLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

func (l *sessionLogger) logEvent(sessionID, msg string) {
	if l == nil || l.file == nil {
		return
	}
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	label := fixedWidth(sessionID, 36)
	line := fmt.Sprintf("%s %s %s\n", ts, label, msg)
	l.mu.Lock()
	_, _ = l.file.WriteString(line)
	l.mu.Unlock()
}

func fixedWidth(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return fmt.Sprintf("%-*s", width, s)
}
