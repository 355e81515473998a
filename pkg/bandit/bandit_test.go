package bandit

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestNewBandits(t *testing.T) {
	t.Run("rejects non-positive arm count", func(t *testing.T) {
		_, err := NewBernoulliBandit(0)
		require.ErrorIs(t, err, ErrInvalidConfig)
		_, err = NewBinomialBandit(-1, 5)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("rejects non-positive trials per pull", func(t *testing.T) {
		_, err := NewBinomialBandit(3, 0)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("rejects generator of wrong length", func(t *testing.T) {
		_, err := NewBernoulliBandit(3, WithGenerator(Fixed(0.1, 0.2)))
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("rejects probabilities outside the unit interval", func(t *testing.T) {
		_, err := NewBernoulliBandit(2, WithGenerator(Fixed(0.1, 1.2)))
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("rejects nan probabilities", func(t *testing.T) {
		_, err := NewBernoulliBandit(2, WithGenerator(Fixed(math.NaN(), 0.5)))
		require.ErrorIs(t, err, ErrInvalidConfig)
		_, err = NewBinomialBandit(2, 5, WithGenerator(Fixed(0.5, math.NaN())))
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("records horizon", func(t *testing.T) {
		b, err := NewBinomialBandit(10, 5, WithHorizon(3000), WithRand(testRand()))
		require.NoError(t, err)
		assert.Equal(t, 3000, b.Horizon())
		assert.Equal(t, 5, b.Trials())
		assert.Equal(t, 10, b.K())
	})
}

func TestResetRedrawsValues(t *testing.T) {
	b, err := NewBernoulliBandit(10, WithRand(testRand()))
	require.NoError(t, err)

	first := b.ActionValues()
	require.Len(t, first, 10)
	for _, v := range first {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Equal(t, argmaxFirst(first), b.Optimal())

	require.NoError(t, b.Reset())
	second := b.ActionValues()
	assert.NotEqual(t, first, second)
	assert.Equal(t, argmaxFirst(second), b.Optimal())
}

func TestResetRejectsBadGeneratorOutput(t *testing.T) {
	draws := 0
	flaky := func(k int, rng *rand.Rand) []float64 {
		draws++
		if draws > 1 {
			return []float64{0.3, math.NaN()}
		}
		return []float64{0.3, 0.6}
	}
	b, err := NewBernoulliBandit(2, WithGenerator(flaky))
	require.NoError(t, err)

	err = b.Reset()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, []float64{0.3, 0.6}, b.ActionValues())
	assert.Equal(t, 1, b.Optimal())
}

func TestOptimalTieBreaksOnFirstIndex(t *testing.T) {
	b, err := NewBernoulliBandit(4, WithGenerator(Fixed(0.2, 0.7, 0.7, 0.1)))
	require.NoError(t, err)
	assert.Equal(t, 1, b.Optimal())
}

func TestActionValuesReturnsCopy(t *testing.T) {
	b, err := NewBernoulliBandit(2, WithGenerator(Fixed(0.9, 0.1)))
	require.NoError(t, err)
	values := b.ActionValues()
	values[0] = 0
	assert.Equal(t, []float64{0.9, 0.1}, b.ActionValues())
}

func TestPull(t *testing.T) {
	t.Run("bernoulli rewards are zero or one", func(t *testing.T) {
		b, err := NewBernoulliBandit(2, WithGenerator(Fixed(0.9, 0.1)), WithRand(testRand()))
		require.NoError(t, err)

		var sum float64
		const pulls = 5000
		for i := 0; i < pulls; i++ {
			r, optimal, err := b.Pull(0)
			require.NoError(t, err)
			assert.True(t, optimal)
			assert.Contains(t, []float64{0, 1}, r)
			sum += r
		}
		assert.InDelta(t, 0.9, sum/pulls, 0.03)

		_, optimal, err := b.Pull(1)
		require.NoError(t, err)
		assert.False(t, optimal)
	})

	t.Run("binomial rewards count successes", func(t *testing.T) {
		b, err := NewBinomialBandit(2, 5, WithGenerator(Fixed(0.6, 0.3)), WithRand(testRand()))
		require.NoError(t, err)

		var sum float64
		const pulls = 5000
		for i := 0; i < pulls; i++ {
			r, _, err := b.Pull(0)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, r, 0.0)
			assert.LessOrEqual(t, r, 5.0)
			assert.Equal(t, float64(int(r)), r)
			sum += r
		}
		assert.InDelta(t, 3.0, sum/pulls, 0.1)
	})

	t.Run("out of range action fails", func(t *testing.T) {
		b, err := NewBernoulliBandit(2, WithRand(testRand()))
		require.NoError(t, err)
		for _, action := range []int{-1, 2, 100} {
			_, _, err := b.Pull(action)
			assert.True(t, errors.Is(err, ErrInvalidAction), "action %d", action)
		}
	})
}

func argmaxFirst(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
