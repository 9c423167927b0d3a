package hot

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process, TTL-agnostic stand-in for the Redis-backed Store,
// grounded on the teacher's store/inmemory package (which pairs every boltdb
// store with a plain-map equivalent for tests). It implements the same
// method set as *Store, so the Clock/Mood Store/Dialogue Log packages accept
// either one interchangeably through their narrow seam interfaces.
type Memory struct {
	mu     sync.Mutex
	scalar map[string]string
	lists  map[string][]string // head-to-tail, index 0 == head
}

// NewMemory builds an empty Memory store.
func NewMemory() *Memory {
	return &Memory{scalar: make(map[string]string), lists: make(map[string][]string)}
}

func (m *Memory) GetString(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.scalar[key]
	return v, ok
}

func (m *Memory) SetString(_ context.Context, key, val string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scalar[key] = val
	return nil
}

func (m *Memory) Expire(_ context.Context, _ string, _ time.Duration) error {
	// TTLs are not modeled in-memory; tests assert on value/shape, not expiry.
	return nil
}

func (m *Memory) LPush(_ context.Context, key, val string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append([]string{val}, m.lists[key]...)
	return nil
}

func (m *Memory) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	n := int64(len(list))
	if n == 0 {
		return nil, nil
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start < 0 {
		start = 0
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (m *Memory) LSet(_ context.Context, key string, index int64, val string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	if index < 0 || index >= int64(len(list)) {
		return fmt.Errorf("hot memory: lset %q[%d]: index out of range", key, index)
	}
	list[index] = val
	return nil
}

func (m *Memory) LLen(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.lists[key])), nil
}
