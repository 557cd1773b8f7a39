package valuecache

import (
	"context"
	"sync"
	"time"

	"github.com/mash-protocol/tagsched/pkg/tag"
)

// Value is the cached value of one tag.
type Value struct {
	// Raw is the value as stored by the cache.
	Raw any `json:"raw"`

	// UpdatedAt is when the cache last saw a change, if known.
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Service reads current values for a batch of tags.
// Handles without a cached value are omitted from the result.
type Service interface {
	GetValues(ctx context.Context, handles []tag.Handle) (map[tag.Handle]Value, error)
}

// Memory is an in-process value cache. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[tag.Handle]Value
	now    func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[tag.Handle]Value),
		now:    time.Now,
	}
}

// Set stores the value of h.
func (m *Memory) Set(h tag.Handle, raw any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[h] = Value{Raw: raw, UpdatedAt: m.now()}
}

// Delete removes the value of h.
func (m *Memory) Delete(h tag.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, h)
}

// GetValues returns the cached values of handles.
func (m *Memory) GetValues(ctx context.Context, handles []tag.Handle) (map[tag.Handle]Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[tag.Handle]Value, len(handles))
	for _, h := range handles {
		if v, ok := m.values[h]; ok {
			out[h] = v
		}
	}
	return out, nil
}

var _ Service = (*Memory)(nil)
