package agent

import (
	"context"
	"fmt"

	"github.com/boristopalov/bandits/pkg/bandit"
	"github.com/boristopalov/bandits/pkg/policy"
)

// posterior is a Beta(alpha, beta) belief over every arm's per-trial success
// probability, starting from the uniform Beta(1,1) prior.
type posterior struct {
	alpha []float64
	beta  []float64
	n     int
}

func newPosterior(k, n int) posterior {
	p := posterior{
		alpha: make([]float64, k),
		beta:  make([]float64, k),
		n:     n,
	}
	p.reset()
	return p
}

func (p *posterior) reset() {
	for i := range p.alpha {
		p.alpha[i] = 1
		p.beta[i] = 1
	}
}

// update adds reward successes and n-reward failures to the arm.
func (p *posterior) update(action int, reward float64) {
	p.alpha[action] += reward
	p.beta[action] += float64(p.n) - reward
}

func (p *posterior) check(reward float64) error {
	if reward < 0 || reward > float64(p.n) {
		return fmt.Errorf("%w: %v not in [0,%d]", ErrInvalidReward, reward, p.n)
	}
	return nil
}

func (p *posterior) means() []float64 {
	means := make([]float64, len(p.alpha))
	for i := range means {
		means[i] = p.alpha[i] / (p.alpha[i] + p.beta[i])
	}
	return means
}

func (p *posterior) withPosterior(s policy.Snapshot) policy.Snapshot {
	s.Alpha = p.alpha
	s.Beta = p.beta
	return s
}

// BetaAgent keeps a Beta posterior per arm; its value estimates are the
// posterior means.
type BetaAgent struct {
	*learner
	posterior
}

// NewBetaAgent creates a Bayesian agent for b that decides with p.
func NewBetaAgent(b bandit.Bandit, p policy.Policy, opts ...AgentOption) (*BetaAgent, error) {
	l, err := newLearner(b, p, buildParams(opts))
	if err != nil {
		return nil, err
	}
	return &BetaAgent{
		learner:   l,
		posterior: newPosterior(l.k, l.n),
	}, nil
}

func (a *BetaAgent) Name() string {
	return "bayesian " + a.policy.Name()
}

func (a *BetaAgent) Choose(ctx context.Context) (int, error) {
	return a.choose(ctx, a.withPosterior(a.learner.snapshot(a.means())))
}

func (a *BetaAgent) Observe(reward float64) error {
	if err := a.check(reward); err != nil {
		return fmt.Errorf("agent %s: %w", a.id, err)
	}
	action, _, err := a.record(reward)
	if err != nil {
		return err
	}
	a.update(action, reward)
	return nil
}

func (a *BetaAgent) Reset() {
	a.learner.reset()
	a.posterior.reset()
}

func (a *BetaAgent) Estimates() []float64 {
	return a.means()
}

// Alpha returns a copy of the per-arm alpha parameters.
func (a *BetaAgent) Alpha() []float64 {
	return append([]float64(nil), a.alpha...)
}

// Beta returns a copy of the per-arm beta parameters.
func (a *BetaAgent) Beta() []float64 {
	return append([]float64(nil), a.beta...)
}
