package memory

import (
	"sync"
	"testing"

	"github.com/boristopalov/gymbridge/pkg/core"
)

func TestMemory(t *testing.T) {
	t.Run("evicts the oldest transition", func(t *testing.T) {
		m := NewMemory(3)
		for i := 0; i < 5; i++ {
			m.Store(core.Transition{Step: i})
		}

		if got := m.Len(); got != 3 {
			t.Fatalf("m.Len() = %d, want 3", got)
		}
		recent := m.Recent(0)
		for i, tr := range recent {
			if tr.Step != i+2 {
				t.Errorf("recent[%d].Step = %d, want %d", i, tr.Step, i+2)
			}
		}
	})

	t.Run("recent returns a copy of the tail", func(t *testing.T) {
		m := NewMemory(10)
		for i := 0; i < 4; i++ {
			m.Store(core.Transition{Step: i, Reward: float64(i)})
		}

		recent := m.Recent(2)
		if len(recent) != 2 || recent[0].Step != 2 || recent[1].Step != 3 {
			t.Fatalf("unexpected tail: %+v", recent)
		}
		recent[0].Reward = 100
		if m.Recent(2)[0].Reward != 2 {
			t.Error("Recent must not expose internal storage")
		}
	})

	t.Run("clear", func(t *testing.T) {
		m := NewMemory(2)
		m.Store(core.Transition{})
		m.Clear()
		if m.Len() != 0 {
			t.Errorf("m.Len() = %d after Clear, want 0", m.Len())
		}
	})

	t.Run("concurrent store", func(t *testing.T) {
		m := NewMemory(50)
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					m.Store(core.Transition{Step: i})
					m.Recent(5)
				}
			}()
		}
		wg.Wait()
		if m.Len() != 50 {
			t.Errorf("m.Len() = %d, want 50", m.Len())
		}
	})
}
