package pipeline

import (
	"fmt"
	"sync"
)

// StatusLog is the append-only, thread-safe sink for human-readable
// progress and error lines. Background jobs append; the UI reads the lines
// (or just the last one) each frame. It retains at most max lines, dropping
// the oldest.
type StatusLog struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewStatusLog creates a status log retaining up to max lines. max below 1
// falls back to 64.
func NewStatusLog(max int) *StatusLog {
	if max < 1 {
		max = 64
	}
	return &StatusLog{max: max}
}

// Appendf formats and appends one status line.
func (l *StatusLog) Appendf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
	if len(l.lines) > l.max {
		l.lines = l.lines[len(l.lines)-l.max:]
	}
}

// Last returns the most recent status line, or "" when nothing has been
// logged.
func (l *StatusLog) Last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return ""
	}
	return l.lines[len(l.lines)-1]
}

// Lines returns a copy of the retained lines, oldest first.
func (l *StatusLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}
