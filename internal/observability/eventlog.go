package observability

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Audit levels. Destructive commits are WARN; everything else is INFO.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// maxEventLine bounds a single JSONL record; split summaries stay far below it.
const maxEventLine = 1 << 20

// ErrLogClosed is returned by Write after Close.
var ErrLogClosed = errors.New("event log is closed")

// Event is one audited commit against the task store.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Type    string         `json:"type"` // split.committed, task.status_changed, store.cleared, ...
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// TaskID returns the task_id carried in the event data, if any.
func (e Event) TaskID() string {
	id, _ := e.Data["task_id"].(string)
	return id
}

// EventFilter selects events. Zero fields match everything. A Type ending in
// "." selects the whole family, so "task." matches task.updated and
// task.status_changed alike.
type EventFilter struct {
	Since  *time.Time
	Until  *time.Time
	Type   string
	Level  string
	TaskID string
	// Limit keeps only the most recent matches; 0 means unlimited.
	Limit int
}

// Match reports whether e satisfies every criterion of f.
func (f EventFilter) Match(e Event) bool {
	switch {
	case f.Since != nil && e.Time.Before(*f.Since):
		return false
	case f.Until != nil && e.Time.After(*f.Until):
		return false
	case f.Level != "" && !strings.EqualFold(e.Level, f.Level):
		return false
	case f.TaskID != "" && e.TaskID() != f.TaskID:
		return false
	}
	if f.Type == "" {
		return true
	}
	if strings.HasSuffix(f.Type, ".") {
		return strings.HasPrefix(e.Type, f.Type)
	}
	return e.Type == f.Type
}

// EventLog is the append-only audit trail of committed mutations.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// jsonlEventLog keeps one record per line. The file is opened O_APPEND so the
// CLI and a running MCP server can share it.
type jsonlEventLog struct {
	fs   afero.Fs
	path string

	mu   sync.Mutex
	file afero.File
	now  func() time.Time
}

// NewJSONLEventLog opens (creating if needed) the JSONL audit log at path.
func NewJSONLEventLog(fsys afero.Fs, path string) (EventLog, error) {
	f, err := fsys.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{fs: fsys, path: path, file: f, now: time.Now}, nil
}

// Write appends event as one line and syncs it. A zero Time is stamped with
// the current UTC time and an empty Level defaults to INFO.
func (l *jsonlEventLog) Write(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrLogClosed
	}
	if event.Time.IsZero() {
		event.Time = l.now().UTC()
	}
	if event.Level == "" {
		event.Level = LevelInfo
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event %s: %w", event.Type, err)
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing event %s: %w", event.Type, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing event log: %w", err)
	}
	return nil
}

// Read returns the events matching filter in write order. It reopens the file
// so records appended by other processes are visible.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := l.fs.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	tail := newEventTail(filter.Limit)
	err = decodeEvents(f, func(e Event) {
		if filter.Match(e) {
			tail.push(e)
		}
	})
	if err != nil {
		return nil, err
	}
	return tail.events(), nil
}

// Close closes the log. Closing twice is a no-op.
func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

// decodeEvents calls fn for every well-formed record in r. Blank and
// malformed lines are skipped; a torn final line from a crashed writer must
// not hide the rest of the history.
func decodeEvents(r io.Reader, fn func(Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		fn(e)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning event log: %w", err)
	}
	return nil
}

// eventTail collects matches, keeping only the newest limit when limit > 0.
type eventTail struct {
	limit int
	buf   []Event
	next  int
	full  bool
}

func newEventTail(limit int) *eventTail {
	if limit < 0 {
		limit = 0
	}
	return &eventTail{limit: limit}
}

func (t *eventTail) push(e Event) {
	if t.limit == 0 || len(t.buf) < t.limit {
		t.buf = append(t.buf, e)
		return
	}
	t.buf[t.next] = e
	t.next = (t.next + 1) % t.limit
	t.full = true
}

func (t *eventTail) events() []Event {
	if !t.full {
		return t.buf
	}
	out := make([]Event, 0, len(t.buf))
	out = append(out, t.buf[t.next:]...)
	return append(out, t.buf[:t.next]...)
}
