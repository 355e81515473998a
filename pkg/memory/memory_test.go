package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemory(t *testing.T) {
	t.Run("drops oldest when full", func(t *testing.T) {
		m := NewMemory(3)
		for i := 0; i < 5; i++ {
			m.Store(Decision{Step: i, Action: i % 2, Reward: 1})
		}
		got := m.GetAll()
		assert.Len(t, got, 3)
		assert.Equal(t, 2, got[0].Step)
		assert.Equal(t, 4, got[2].Step)
	})

	t.Run("last returns most recent in order", func(t *testing.T) {
		m := NewMemory(10)
		for i := 0; i < 4; i++ {
			m.Store(Decision{Step: i})
		}
		last := m.Last(2)
		assert.Equal(t, []Decision{{Step: 2}, {Step: 3}}, last)
		assert.Len(t, m.Last(100), 4)
		assert.Nil(t, m.Last(0))
	})

	t.Run("zero capacity stores nothing", func(t *testing.T) {
		m := NewMemory(0)
		m.Store(Decision{Step: 1})
		assert.Empty(t, m.GetAll())
	})

	t.Run("clear empties memory", func(t *testing.T) {
		m := NewMemory(2)
		m.Store(Decision{Step: 1})
		m.Clear()
		assert.Empty(t, m.GetAll())
	})
}
