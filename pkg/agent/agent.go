package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/boristopalov/bandits/pkg/bandit"
	"github.com/boristopalov/bandits/pkg/memory"
	"github.com/boristopalov/bandits/pkg/policy"
)

var (
	// ErrNoAction is returned by Observe when no Choose preceded it.
	ErrNoAction      = errors.New("agent: observe called without a chosen action")
	ErrInvalidReward = errors.New("agent: reward out of range")
	ErrInvalidConfig = errors.New("agent: invalid configuration")
)

// Agent learns per-arm values of a bandit through repeated choose/observe cycles
type Agent interface {
	GetID() string
	// Name describes the agent for legends and summaries
	Name() string
	// Arms returns the number of arms the agent keeps statistics for
	Arms() int
	// Choose asks the policy for the next arm and remembers it
	Choose(ctx context.Context) (int, error)
	// Observe feeds back the reward for the last chosen arm
	Observe(reward float64) error
	// Reset forgets everything learned
	Reset()
	// Estimates returns a copy of the current per-arm value estimates
	Estimates() []float64
}

type AgentParams struct {
	AgentID         string
	Rand            *rand.Rand
	HistoryCapacity int
	RewardMapping   bandit.RewardMapping
	Budget          float64
	Policy          policy.Policy
}

type AgentOption func(*AgentParams)

func WithAgentId(id string) AgentOption {
	return func(p *AgentParams) {
		p.AgentID = id
	}
}

func WithRand(rng *rand.Rand) AgentOption {
	return func(p *AgentParams) {
		p.Rand = rng
	}
}

// WithHistory sets how many recent decisions the agent remembers.
func WithHistory(capacity int) AgentOption {
	return func(p *AgentParams) {
		p.HistoryCapacity = capacity
	}
}

// WithRewardMapping sets how a BudgetAgent converts rewards into budget changes.
func WithRewardMapping(m bandit.RewardMapping) AgentOption {
	return func(p *AgentParams) {
		p.RewardMapping = m
	}
}

// WithBudget sets the initial survival budget of a BudgetAgent.
func WithBudget(budget float64) AgentOption {
	return func(p *AgentParams) {
		p.Budget = budget
	}
}

// WithPolicy replaces the default policy of a BudgetAgent.
func WithPolicy(p policy.Policy) AgentOption {
	return func(params *AgentParams) {
		params.Policy = p
	}
}

func defaultAgentParams() *AgentParams {
	return &AgentParams{
		AgentID:         "agent-" + uuid.New().String(),
		Rand:            rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		HistoryCapacity: 10,
		RewardMapping:   bandit.MajoritySign,
		Budget:          10,
	}
}

func buildParams(opts []AgentOption) *AgentParams {
	params := defaultAgentParams()
	for _, opt := range opts {
		opt(params)
	}
	return params
}

// learner is the bookkeeping every agent variant shares: pull counts, the
// pending action and the decision history.
type learner struct {
	id         string
	k          int
	n          int
	policy     policy.Policy
	rng        *rand.Rand
	memory     *memory.Memory
	counts     []int
	t          int
	lastAction int
}

func newLearner(b bandit.Bandit, p policy.Policy, params *AgentParams) (*learner, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil bandit", ErrInvalidConfig)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: nil policy", ErrInvalidConfig)
	}
	l := &learner{
		id:     params.AgentID,
		k:      b.K(),
		n:      b.Trials(),
		policy: p,
		rng:    params.Rand,
		memory: memory.NewMemory(params.HistoryCapacity),
		counts: make([]int, b.K()),
	}
	l.reset()
	return l, nil
}

func (l *learner) reset() {
	clear(l.counts)
	l.t = 0
	l.lastAction = -1
	l.memory.Clear()
}

func (l *learner) snapshot(estimates []float64) policy.Snapshot {
	return policy.Snapshot{
		Estimates: estimates,
		Counts:    l.counts,
		T:         l.t,
		History:   l.memory,
		Rand:      l.rng,
	}
}

func (l *learner) choose(ctx context.Context, s policy.Snapshot) (int, error) {
	action, err := l.policy.Choose(ctx, s)
	if err != nil {
		return 0, fmt.Errorf("agent %s: %w", l.id, err)
	}
	if action < 0 || action >= l.k {
		return 0, fmt.Errorf("agent %s: %w: policy %s returned arm %d for %d arms",
			l.id, bandit.ErrInvalidAction, l.policy.Name(), action, l.k)
	}
	l.lastAction = action
	return action, nil
}

// record consumes the pending action and returns it with its new pull count.
func (l *learner) record(reward float64) (int, int, error) {
	action := l.lastAction
	if action < 0 {
		return 0, 0, fmt.Errorf("agent %s: %w", l.id, ErrNoAction)
	}
	l.lastAction = -1
	l.counts[action]++
	l.t++
	l.memory.Store(memory.Decision{Step: l.t, Action: action, Reward: reward})
	return action, l.counts[action], nil
}

func (l *learner) GetID() string {
	return l.id
}

func (l *learner) Arms() int {
	return l.k
}

// Counts returns a copy of the per-arm pull counts.
func (l *learner) Counts() []int {
	counts := make([]int, len(l.counts))
	copy(counts, l.counts)
	return counts
}

// History returns the agent's most recent decisions, oldest first.
func (l *learner) History() []memory.Decision {
	return l.memory.GetAll()
}
