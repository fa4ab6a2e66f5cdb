package soundboard

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// ErrRequestStorageFull is returned when appending a request would push the
// log file past its configured byte cap.
var ErrRequestStorageFull = errors.New("soundboard: request storage full")

// RequestLog is the append-only file users' sound requests land in. Appends
// are rejected, never truncated, once the configured byte budget is used up.
// Safe for concurrent use.
type RequestLog struct {
	mu      sync.Mutex
	f       *os.File
	size    int64
	maxSize int64

	now func() time.Time // stubbed in tests
}

// OpenRequestLog opens (creating if needed) the request file at path with the
// given byte cap. Existing content counts against the budget.
func OpenRequestLog(path string, maxSize int64) (*RequestLog, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("soundboard: request log size cap must be positive, got %d", maxSize)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("soundboard: open request log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("soundboard: stat request log: %w", err)
	}
	return &RequestLog{f: f, size: info.Size(), maxSize: maxSize, now: time.Now}, nil
}

// Append records one request as a timestamped line. Returns
// [ErrRequestStorageFull] when the line would not fit in the remaining
// budget; the file is left untouched in that case.
func (l *RequestLog) Append(text string) error {
	line := l.now().UTC().Format(time.RFC3339) + " " + text + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size+int64(len(line)) > l.maxSize {
		return fmt.Errorf("%w: %d of %d bytes used", ErrRequestStorageFull, l.size, l.maxSize)
	}
	n, err := l.f.WriteString(line)
	l.size += int64(n)
	if err != nil {
		return fmt.Errorf("soundboard: append request: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *RequestLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
