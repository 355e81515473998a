package agent

import (
	"context"
	"fmt"

	"github.com/boristopalov/bandits/pkg/bandit"
	"github.com/boristopalov/bandits/pkg/policy"
)

// BudgetAgent is a Bayesian agent that also mirrors its own survival budget
// so its policy can play safer as the budget runs down. The default policy
// is BudgetUCB.
type BudgetAgent struct {
	*learner
	posterior
	mapping       bandit.RewardMapping
	initialBudget float64
	budget        float64
}

// NewBudgetAgent creates a budget-aware agent for b whose BudgetUCB policy
// uses exploration coefficient c.
func NewBudgetAgent(b bandit.Bandit, c float64, opts ...AgentOption) (*BudgetAgent, error) {
	params := buildParams(opts)
	p := params.Policy
	if p == nil {
		ucb, err := policy.NewBudgetUCB(c)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		p = ucb
	}
	if params.RewardMapping == nil {
		return nil, fmt.Errorf("%w: nil reward mapping", ErrInvalidConfig)
	}
	l, err := newLearner(b, p, params)
	if err != nil {
		return nil, err
	}
	a := &BudgetAgent{
		learner:       l,
		posterior:     newPosterior(l.k, l.n),
		mapping:       params.RewardMapping,
		initialBudget: params.Budget,
	}
	a.budget = a.initialBudget
	return a, nil
}

func (a *BudgetAgent) Name() string {
	return "budget-aware " + a.policy.Name()
}

// SetBudget changes the budget the agent starts every repetition with and
// restores the mirror to it.
func (a *BudgetAgent) SetBudget(budget float64) {
	a.initialBudget = budget
	a.budget = budget
}

// Budget returns the agent's own view of its remaining budget.
func (a *BudgetAgent) Budget() float64 {
	return a.budget
}

func (a *BudgetAgent) Choose(ctx context.Context) (int, error) {
	s := a.withPosterior(a.learner.snapshot(a.means()))
	s.Budget = a.budget
	s.InitialBudget = a.initialBudget
	return a.choose(ctx, s)
}

func (a *BudgetAgent) Observe(reward float64) error {
	if err := a.check(reward); err != nil {
		return fmt.Errorf("agent %s: %w", a.id, err)
	}
	action, _, err := a.record(reward)
	if err != nil {
		return err
	}
	a.update(action, reward)
	a.budget += a.mapping(reward, a.posterior.n)
	return nil
}

func (a *BudgetAgent) Reset() {
	a.learner.reset()
	a.posterior.reset()
	a.budget = a.initialBudget
}

func (a *BudgetAgent) Estimates() []float64 {
	return a.means()
}

func (a *BudgetAgent) Alpha() []float64 {
	return append([]float64(nil), a.alpha...)
}

func (a *BudgetAgent) Beta() []float64 {
	return append([]float64(nil), a.beta...)
}
