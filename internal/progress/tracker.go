// Package progress tracks how far the embedding job has advanced and estimates the time left.
package progress

import (
	"fmt"
	"sync"
	"time"
)

// Tracker holds the counters of one embedding run. Safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	total      int
	processed  int
	running    bool
	finished   bool
	startedAt  time.Time
	finishedAt time.Time
	now        func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker returns an idle tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Reset starts a new run of total files.
func (t *Tracker) Reset(total int) {
	if total < 0 {
		total = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
	t.processed = 0
	t.running = true
	t.finished = false
	t.startedAt = t.now()
	t.finishedAt = time.Time{}
}

// Advance records one attempted file, successful or not. It never exceeds total.
func (t *Tracker) Advance() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.processed < t.total {
		t.processed++
	}
}

// Finish marks the run as no longer running.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	t.finished = true
	t.finishedAt = t.now()
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{
		Total:     t.total,
		Processed: t.processed,
		Running:   t.running,
		Finished:  t.finished,
		StartedAt: t.startedAt,
	}
	switch {
	case t.finished:
		s.Elapsed = t.finishedAt.Sub(t.startedAt)
	case t.running:
		s.Elapsed = t.now().Sub(t.startedAt)
	}
	return s
}

// Snapshot is a point-in-time copy of a Tracker.
type Snapshot struct {
	Total     int
	Processed int
	Running   bool
	Finished  bool
	StartedAt time.Time
	Elapsed   time.Duration
}

// Percent returns processed/total as a truncated integer percentage. Only a finished
// run reports 100, including a run over zero files; a running one stops at 99.
func (s Snapshot) Percent() int {
	if s.Finished {
		return 100
	}
	if s.Total == 0 {
		return 0
	}
	p := s.Processed * 100 / s.Total
	if p > 99 {
		p = 99
	}
	return p
}

// Remaining estimates the time left from the average time per attempted file.
// ok is false until at least one file has been attempted.
func (s Snapshot) Remaining() (remaining time.Duration, ok bool) {
	if s.Processed <= 0 {
		return 0, false
	}
	avg := s.Elapsed / time.Duration(s.Processed)
	return time.Duration(s.Total-s.Processed) * avg, true
}

// TimeLeft formats Remaining as MM:SS, or "" when no estimate is available.
func (s Snapshot) TimeLeft() string {
	remaining, ok := s.Remaining()
	if !ok {
		return ""
	}
	return FormatMMSS(remaining)
}

// FormatMMSS formats d as zero-padded minutes and seconds, truncating to whole seconds.
// Minutes are not wrapped at 60.
func FormatMMSS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
