package logging

import (
	"sync"
	"time"
)

// LogEntry is a single structured log line kept in the ring buffer.
// Seq is assigned on write and lets streaming clients deduplicate
// entries they already saw in the history replay.
type LogEntry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer is a fixed-size, thread-safe circular log store. Once
// full, each write evicts the oldest entry.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	head    int // next write position
	count   int
	seq     uint64
}

// NewRingBuffer creates a ring buffer holding up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{entries: make([]LogEntry, size)}
}

// Write appends an entry, evicting the oldest when the buffer is full.
// It returns the stored entry with its assigned sequence number.
func (rb *RingBuffer) Write(entry LogEntry) LogEntry {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.seq++
	entry.Seq = rb.seq

	rb.entries[rb.head] = entry
	rb.head = (rb.head + 1) % len(rb.entries)
	if rb.count < len(rb.entries) {
		rb.count++
	}
	return entry
}

// ReadAll returns a copy of the buffered entries, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.count == 0 {
		return nil
	}

	out := make([]LogEntry, 0, rb.count)
	if rb.count < len(rb.entries) {
		return append(out, rb.entries[:rb.count]...)
	}
	out = append(out, rb.entries[rb.head:]...)
	return append(out, rb.entries[:rb.head]...)
}

// Count returns the number of buffered entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}
