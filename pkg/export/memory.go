package export

import (
	"context"
	"slices"
	"sync"
)

// MemorySink keeps records in memory. Finalize snapshots what was written.
type MemorySink struct {
	mu        sync.Mutex
	buf       buffer
	finalized []Record
	finalizes int
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

func (m *MemorySink) Write(ctx context.Context, id int, segments []Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.Write(ctx, id, segments)
}

func (m *MemorySink) Finalize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized = slices.Clone(m.buf.records)
	m.finalizes++
	return nil
}

// Records returns the records persisted by the last Finalize.
func (m *MemorySink) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.finalized)
}

// Finalized reports how many times Finalize was called.
func (m *MemorySink) Finalized() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalizes
}

var _ Sink = (*MemorySink)(nil)
