package memory

import "sync"

// Decision is one choose/observe cycle of an agent.
type Decision struct {
	Step   int
	Action int
	Reward float64
}

// Memory keeps the most recent decisions of an agent, dropping the oldest
// once capacity is reached.
type Memory struct {
	decisions []Decision
	capacity  int
	mu        sync.RWMutex
}

func NewMemory(capacity int) *Memory {
	if capacity < 0 {
		capacity = 0
	}
	return &Memory{
		decisions: make([]Decision, 0, capacity),
		capacity:  capacity,
	}
}

// GetAll returns a copy of the stored decisions, oldest first
func (m *Memory) GetAll() []Decision {
	m.mu.RLock()
	defer m.mu.RUnlock()

	decisions := make([]Decision, len(m.decisions))
	copy(decisions, m.decisions)
	return decisions
}

// Last returns up to n of the most recent decisions, oldest first
func (m *Memory) Last(n int) []Decision {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n > len(m.decisions) {
		n = len(m.decisions)
	}
	if n <= 0 {
		return nil
	}
	decisions := make([]Decision, n)
	copy(decisions, m.decisions[len(m.decisions)-n:])
	return decisions
}

func (m *Memory) Store(d Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capacity == 0 {
		return
	}
	if len(m.decisions) == m.capacity {
		copy(m.decisions, m.decisions[1:])
		m.decisions = m.decisions[:len(m.decisions)-1]
	}
	m.decisions = append(m.decisions, d)
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = m.decisions[:0]
}
