package policy

import (
	"context"
	"fmt"
)

// Greedy always exploits the arm with the highest estimate.
type Greedy struct{}

func NewGreedy() *Greedy {
	return &Greedy{}
}

func (g *Greedy) Name() string {
	return "greedy"
}

func (g *Greedy) Choose(ctx context.Context, s Snapshot) (int, error) {
	if s.Arms() == 0 {
		return 0, ErrNoArms
	}
	return argmax(s.Estimates, s.Rand), nil
}

// EpsilonGreedy explores a uniformly random arm with probability Epsilon and
// behaves like Greedy otherwise.
type EpsilonGreedy struct {
	Epsilon float64
	greedy  Greedy
}

func NewEpsilonGreedy(epsilon float64) (*EpsilonGreedy, error) {
	if epsilon < 0 || epsilon > 1 {
		return nil, fmt.Errorf("%w: epsilon %v not in [0,1]", ErrInvalidParam, epsilon)
	}
	return &EpsilonGreedy{Epsilon: epsilon}, nil
}

func (p *EpsilonGreedy) Name() string {
	return fmt.Sprintf("ε-greedy (ε=%g)", p.Epsilon)
}

func (p *EpsilonGreedy) Choose(ctx context.Context, s Snapshot) (int, error) {
	if s.Arms() == 0 {
		return 0, ErrNoArms
	}
	if s.Rand != nil && p.Epsilon > 0 && s.Rand.Float64() < p.Epsilon {
		return s.Rand.IntN(s.Arms()), nil
	}
	return p.greedy.Choose(ctx, s)
}
