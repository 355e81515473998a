package bandit

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInvalidAction is returned when an arm index is outside [0, k).
	ErrInvalidAction = errors.New("invalid action")
	// ErrInvalidConfig is returned by constructors given an unusable configuration.
	ErrInvalidConfig = errors.New("invalid bandit configuration")
)

// Bandit is a k-armed reward process with a hidden success probability per arm
type Bandit interface {
	// K returns the number of arms
	K() int
	// Trials returns the number of independent trials behind one pull (1 for Bernoulli)
	Trials() int
	// ActionValues returns a copy of the true per-arm success probabilities
	ActionValues() []float64
	// Optimal returns the index of the arm with the highest true value
	Optimal() int
	// Pull samples a reward for the given arm and reports whether it was the optimal arm
	Pull(action int) (float64, bool, error)
	// Reset redraws the true action values
	Reset() error
}

// Generator draws k true action values for a fresh repetition.
type Generator func(k int, rng *rand.Rand) []float64

// Uniform draws every action value independently from uniform(0,1).
func Uniform() Generator {
	return func(k int, rng *rand.Rand) []float64 {
		u := distuv.Uniform{Min: 0, Max: 1, Src: rng}
		values := make([]float64, k)
		for i := range values {
			values[i] = u.Rand()
		}
		return values
	}
}

// Fixed always returns the given action values. The bandit rejects it at
// construction if the length does not match k.
func Fixed(values ...float64) Generator {
	return func(k int, rng *rand.Rand) []float64 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
}

type params struct {
	rng       *rand.Rand
	horizon   int
	generator Generator
}

type Option func(*params)

// WithRand sets the random source used for value draws and pulls.
func WithRand(rng *rand.Rand) Option {
	return func(p *params) {
		p.rng = rng
	}
}

// WithHorizon records the nominal number of time steps the bandit is meant for.
// It is informational only.
func WithHorizon(t int) Option {
	return func(p *params) {
		p.horizon = t
	}
}

// WithGenerator replaces the uniform action value generator.
func WithGenerator(g Generator) Option {
	return func(p *params) {
		p.generator = g
	}
}

func defaultParams() *params {
	return &params{
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		generator: Uniform(),
	}
}

// base holds the state shared by every bandit variant.
type base struct {
	k            int
	horizon      int
	actionValues []float64
	optimal      int
	rng          *rand.Rand
	generator    Generator
}

func newBase(k int, opts []Option) (*base, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: arm count must be positive, got %d", ErrInvalidConfig, k)
	}
	p := defaultParams()
	for _, opt := range opts {
		opt(p)
	}
	b := &base{
		k:         k,
		horizon:   p.horizon,
		rng:       p.rng,
		generator: p.generator,
	}
	if err := b.redraw(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *base) redraw() error {
	values := b.generator(b.k, b.rng)
	if len(values) != b.k {
		return fmt.Errorf("%w: generator returned %d values for %d arms", ErrInvalidConfig, len(values), b.k)
	}
	for i, v := range values {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: action value %d is %v, outside [0,1]", ErrInvalidConfig, i, v)
		}
	}
	b.actionValues = values
	b.optimal = floats.MaxIdx(values)
	return nil
}

func (b *base) K() int {
	return b.k
}

// Horizon returns the nominal horizon given at construction.
func (b *base) Horizon() int {
	return b.horizon
}

func (b *base) ActionValues() []float64 {
	values := make([]float64, len(b.actionValues))
	copy(values, b.actionValues)
	return values
}

func (b *base) Optimal() int {
	return b.optimal
}

// Reset redraws the action values. The previous values are kept if the
// generator returns an unusable set.
func (b *base) Reset() error {
	return b.redraw()
}

func (b *base) checkAction(action int) error {
	if action < 0 || action >= b.k {
		return fmt.Errorf("%w: arm %d not in [0,%d)", ErrInvalidAction, action, b.k)
	}
	return nil
}
