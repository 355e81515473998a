package agent

import (
	"context"

	"github.com/boristopalov/bandits/pkg/bandit"
	"github.com/boristopalov/bandits/pkg/policy"
)

// ValueAgent keeps a running sample average of the reward of every arm.
type ValueAgent struct {
	*learner
	estimates []float64
}

// NewValueAgent creates a sample-average agent for b that decides with p.
func NewValueAgent(b bandit.Bandit, p policy.Policy, opts ...AgentOption) (*ValueAgent, error) {
	l, err := newLearner(b, p, buildParams(opts))
	if err != nil {
		return nil, err
	}
	return &ValueAgent{
		learner:   l,
		estimates: make([]float64, l.k),
	}, nil
}

func (a *ValueAgent) Name() string {
	return a.policy.Name()
}

func (a *ValueAgent) Choose(ctx context.Context) (int, error) {
	return a.choose(ctx, a.snapshot(a.estimates))
}

func (a *ValueAgent) Observe(reward float64) error {
	action, k, err := a.record(reward)
	if err != nil {
		return err
	}
	a.estimates[action] += (reward - a.estimates[action]) / float64(k)
	return nil
}

func (a *ValueAgent) Reset() {
	a.reset()
	clear(a.estimates)
}

func (a *ValueAgent) Estimates() []float64 {
	estimates := make([]float64, len(a.estimates))
	copy(estimates, a.estimates)
	return estimates
}
