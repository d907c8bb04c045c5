package memory

import (
	"sync"

	"github.com/boristopalov/gymbridge/pkg/core"
)

// Memory is a bounded window of the most recent transitions an agent
// has observed. The oldest transition is dropped once capacity is hit.
type Memory struct {
	transitions []core.Transition
	capacity    int
	mu          sync.RWMutex
}

func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory{
		transitions: make([]core.Transition, 0, capacity),
		capacity:    capacity,
	}
}

// Store appends a transition, evicting the oldest when full.
func (m *Memory) Store(t core.Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transitions = append(m.transitions, t)
	if len(m.transitions) > m.capacity {
		m.transitions = m.transitions[1:]
	}
}

// Recent returns a copy of the last n transitions, oldest first. A
// non-positive n returns everything.
func (m *Memory) Recent(n int) []core.Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := 0
	if n > 0 && n < len(m.transitions) {
		start = len(m.transitions) - n
	}
	out := make([]core.Transition, len(m.transitions)-start)
	copy(out, m.transitions[start:])
	return out
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transitions)
}

// Clear forgets everything, e.g. at the start of an episode.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = m.transitions[:0]
}
