package editor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ActivityType classifies an activity record.
type ActivityType string

const (
	ActivityAccept ActivityType = "accept"
	ActivityReject ActivityType = "reject"
)

// ActivityRecord is one accepted or rejected proposal, as shown in the
// session's activity feed.
type ActivityRecord struct {
	ID           string       `json:"id"`
	Type         ActivityType `json:"type"`
	Timestamp    time.Time    `json:"timestamp"`
	Filename     string       `json:"filename"`
	Project      string       `json:"project"`
	Description  string       `json:"description,omitempty"`
	Action       string       `json:"action"`
	LinesChanged int          `json:"linesChanged,omitempty"`
}

// ActivityLog receives accept/reject records. Push is fire-and-forget; no
// caller consumes a return value.
type ActivityLog interface {
	Push(ActivityRecord)
}

// Feed is a fixed-capacity, most-recent-first activity log. Records are
// stamped with sortable ULID ids on push.
type Feed struct {
	mu       sync.Mutex
	logger   *slog.Logger
	records  []ActivityRecord
	capacity int
}

// NewFeed creates a Feed holding at most capacity records.
func NewFeed(capacity int, logger *slog.Logger) *Feed {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Feed{logger: logger, capacity: capacity}
}

// Push stamps and stores a record, evicting the oldest once full.
func (f *Feed) Push(rec ActivityRecord) {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	f.mu.Lock()
	f.records = append(f.records, rec)
	if len(f.records) > f.capacity {
		f.records = f.records[len(f.records)-f.capacity:]
	}
	f.mu.Unlock()

	f.logger.Info("activity",
		"type", rec.Type,
		"file", rec.Filename,
		"action", rec.Action,
		"lines", rec.LinesChanged,
	)
}

// Recent returns up to n records, newest first.
func (f *Feed) Recent(n int) []ActivityRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 || n > len(f.records) {
		n = len(f.records)
	}
	out := make([]ActivityRecord, 0, n)
	for i := len(f.records) - 1; i >= len(f.records)-n; i-- {
		out = append(out, f.records[i])
	}
	return out
}
