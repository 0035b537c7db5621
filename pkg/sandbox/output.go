package sandbox

import (
	"strings"
	"sync"
)

// lineLimitWriter captures output up to a line cap. Writes past the cap are
// counted and discarded; the Truncated flag records that output was lost.
type lineLimitWriter struct {
	mu        sync.Mutex
	builder   strings.Builder
	lines     int
	maxLines  int
	truncated bool
}

func newLineLimitWriter(maxLines int) *lineLimitWriter {
	if maxLines <= 0 {
		maxLines = 1000
	}
	return &lineLimitWriter{maxLines: maxLines}
}

func (w *lineLimitWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.truncated {
		return len(p), nil
	}

	for _, b := range p {
		w.builder.WriteByte(b)
		if b == '\n' {
			w.lines++
			if w.lines >= w.maxLines {
				w.truncated = true
				break
			}
		}
	}
	return len(p), nil
}

func (w *lineLimitWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.builder.String()
}

func (w *lineLimitWriter) Truncated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.truncated
}
