package monitor

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mangalib/internal/apierr"
)

const DefaultCapacity = 100

// CallLogEntry records one HTTP call. It is created when the call starts
// and filled in exactly once when the call ends.
type CallLogEntry struct {
	ID           string          `json:"id"`
	URL          string          `json:"url"`
	Method       string          `json:"method"`
	Timestamp    time.Time       `json:"timestamp"`
	Duration     *time.Duration  `json:"duration,omitempty"`
	Status       *int            `json:"status,omitempty"`
	Success      bool            `json:"success"`
	Error        *apierr.Details `json:"error,omitempty"`
	RequestSize  *int            `json:"requestSize,omitempty"`
	ResponseSize *int            `json:"responseSize,omitempty"`
}

// Ended reports whether the call has finished, successfully or not.
func (e CallLogEntry) Ended() bool { return e.Duration != nil }

// Observer is notified of every entry once it ends. Observers run on the
// caller's goroutine after the monitor lock is released.
type Observer interface {
	CallEnded(entry CallLogEntry)
}

type ObserverFunc func(CallLogEntry)

func (f ObserverFunc) CallEnded(e CallLogEntry) { f(e) }

type Option func(*Monitor)

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func WithObserver(o Observer) Option {
	return func(m *Monitor) { m.observers = append(m.observers, o) }
}

// Monitor keeps the last N calls in a ring buffer, newest first on read.
type Monitor struct {
	mu    sync.Mutex
	ring  []CallLogEntry
	head  int // next write slot
	count int

	now       func() time.Time
	observers []Observer
}

func New(capacity int, opts ...Option) *Monitor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	m := &Monitor{
		ring: make([]CallLogEntry, capacity),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) Capacity() int { return len(m.ring) }

// AddObserver registers o for entries ending from now on.
func (m *Monitor) AddObserver(o Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, o)
	m.mu.Unlock()
}

func newCallID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return "api_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix
}

// StartCall opens an entry and returns its id. The oldest entry is
// dropped once the ring is full.
func (m *Monitor) StartCall(url, method string) string {
	now := m.now()
	entry := CallLogEntry{
		ID:        newCallID(now),
		URL:       url,
		Method:    strings.ToUpper(method),
		Timestamp: now,
	}

	m.mu.Lock()
	m.ring[m.head] = entry
	m.head = (m.head + 1) % len(m.ring)
	if m.count < len(m.ring) {
		m.count++
	}
	m.mu.Unlock()

	return entry.ID
}

// EndCall closes a successful or non-error entry. Unknown ids (never
// started, or already evicted) and already-ended entries are ignored.
func (m *Monitor) EndCall(id string, status, responseSize int) {
	m.finish(id, func(e *CallLogEntry) {
		e.Status = &status
		e.Success = status >= 200 && status < 300
		e.ResponseSize = &responseSize
	})
}

// EndCallWithError closes an entry with a normalized failure.
func (m *Monitor) EndCallWithError(id string, details *apierr.Details) {
	m.finish(id, func(e *CallLogEntry) {
		status := 0
		if details != nil {
			status = details.Status
		}
		e.Status = &status
		e.Success = false
		e.Error = details
	})
}

// SetRequestSize records the outgoing body size of a running call.
func (m *Monitor) SetRequestSize(id string, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.find(id); e != nil && !e.Ended() {
		e.RequestSize = &size
	}
}

func (m *Monitor) finish(id string, apply func(*CallLogEntry)) {
	now := m.now()

	m.mu.Lock()
	e := m.find(id)
	if e == nil || e.Ended() {
		m.mu.Unlock()
		return
	}
	d := now.Sub(e.Timestamp)
	e.Duration = &d
	apply(e)
	ended := *e
	observers := m.observers
	m.mu.Unlock()

	for _, o := range observers {
		o.CallEnded(ended)
	}
}

// find must be called with mu held.
func (m *Monitor) find(id string) *CallLogEntry {
	if id == "" {
		return nil
	}
	for i := 0; i < m.count; i++ {
		idx := (m.head - 1 - i + len(m.ring)) % len(m.ring)
		if m.ring[idx].ID == id {
			return &m.ring[idx]
		}
	}
	return nil
}

// Logs returns a snapshot of every retained entry, newest first.
func (m *Monitor) Logs() []CallLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Monitor) snapshot() []CallLogEntry {
	out := make([]CallLogEntry, 0, m.count)
	idx := (m.head - 1 + len(m.ring)) % len(m.ring)
	for i := 0; i < m.count; i++ {
		out = append(out, m.ring[idx])
		idx = (idx - 1 + len(m.ring)) % len(m.ring)
	}
	return out
}

// RecentErrors returns up to limit ended, unsuccessful entries, newest
// first. A non-positive limit means 10.
func (m *Monitor) RecentErrors(limit int) []CallLogEntry {
	if limit <= 0 {
		limit = 10
	}
	out := make([]CallLogEntry, 0, limit)
	for _, e := range m.Logs() {
		if e.Success || !e.Ended() {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.ring {
		m.ring[i] = CallLogEntry{}
	}
	m.head = 0
	m.count = 0
}
