package environment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/boristopalov/bandits/internal/logging"
	"github.com/boristopalov/bandits/pkg/agent"
	"github.com/boristopalov/bandits/pkg/bandit"
	"github.com/boristopalov/bandits/pkg/messaging"
	"github.com/boristopalov/bandits/pkg/metrics"
)

const publisherID = "environment"

var ErrInvalidConfig = errors.New("environment: invalid configuration")

type State struct {
	Status     string
	Repetition int
	Timestamp  time.Time
}

// BudgetSetter is implemented by agents that track their own survival
// budget; Run hands them the budget it starts every repetition with.
type BudgetSetter interface {
	SetBudget(budget float64)
}

// Results holds the per-step averages over all repetitions. Every matrix has
// one row per trial and one column per agent, in the order agents were added.
type Results struct {
	Scores   *mat.Dense // mean signed reward
	Optimal  *mat.Dense // fraction of repetitions in which the optimal arm was pulled
	Budgets  *mat.Dense // mean budget held before the step, zero for dead agents
	Survival *mat.Dense // fraction of repetitions in which the agent was still alive
	// Ledger is the raw budget ledger of the final repetition
	Ledger *mat.Dense

	Trials      int
	Experiments int
	AgentIDs    []string
}

// Environment runs a set of agents against one shared bandit
type Environment struct {
	bandit  bandit.Bandit
	agents  []agent.Agent
	label   string
	mapping bandit.RewardMapping
	logger  *slog.Logger
	metrics *metrics.Metrics
	broker  messaging.Broker
	state   State
}

type Option func(*Environment)

func WithLabel(label string) Option {
	return func(e *Environment) {
		e.label = label
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Environment) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Environment) {
		e.metrics = m
	}
}

// WithBroker publishes run lifecycle events on b.
func WithBroker(b messaging.Broker) Option {
	return func(e *Environment) {
		e.broker = b
	}
}

// WithRewardMapping sets how raw rewards become budget changes. The default
// is bandit.MajoritySign.
func WithRewardMapping(m bandit.RewardMapping) Option {
	return func(e *Environment) {
		e.mapping = m
	}
}

// NewEnvironment creates a runner for the given bandit and agents. Every
// agent must keep statistics for exactly the bandit's arms.
func NewEnvironment(b bandit.Bandit, agents []agent.Agent, opts ...Option) (*Environment, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil bandit", ErrInvalidConfig)
	}
	e := &Environment{
		bandit:  b,
		agents:  make([]agent.Agent, 0, len(agents)),
		label:   "Multi-Armed Bandit",
		mapping: bandit.MajoritySign,
		logger:  slog.Default(),
		state: State{
			Status:    "idle",
			Timestamp: time.Now(),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.mapping == nil {
		return nil, fmt.Errorf("%w: nil reward mapping", ErrInvalidConfig)
	}
	for _, a := range agents {
		if err := e.AddAgent(a); err != nil {
			return nil, err
		}
	}
	if len(e.agents) == 0 {
		return nil, fmt.Errorf("%w: no agents", ErrInvalidConfig)
	}
	return e, nil
}

// AddAgent registers a new agent in the environment
func (e *Environment) AddAgent(a agent.Agent) error {
	if a == nil {
		return fmt.Errorf("%w: nil agent", ErrInvalidConfig)
	}
	if a.Arms() != e.bandit.K() {
		return fmt.Errorf("%w: agent %s has %d arms, bandit has %d",
			ErrInvalidConfig, a.GetID(), a.Arms(), e.bandit.K())
	}
	e.agents = append(e.agents, a)
	return nil
}

func (e *Environment) GetAgents() []agent.Agent {
	agents := make([]agent.Agent, len(e.agents))
	copy(agents, e.agents)
	return agents
}

func (e *Environment) GetBandit() bandit.Bandit {
	return e.bandit
}

func (e *Environment) GetLabel() string {
	return e.label
}

func (e *Environment) GetState() State {
	return e.state
}

// Reset redraws the bandit and clears what every agent has learned
func (e *Environment) Reset() error {
	if err := e.bandit.Reset(); err != nil {
		return fmt.Errorf("failed to reset bandit: %w", err)
	}
	for _, a := range e.agents {
		a.Reset()
	}
	return nil
}

// Run plays experiments independent repetitions of trials steps each. Every
// repetition starts from a reset bandit and agents and gives every agent the
// same starting budget. An agent whose budget drops to zero or below sits
// out the rest of that repetition.
func (e *Environment) Run(ctx context.Context, trials, experiments int, budget float64) (*Results, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("%w: trials must be positive, got %d", ErrInvalidConfig, trials)
	}
	if experiments <= 0 {
		return nil, fmt.Errorf("%w: experiments must be positive, got %d", ErrInvalidConfig, experiments)
	}
	if math.IsNaN(budget) {
		return nil, fmt.Errorf("%w: budget is NaN", ErrInvalidConfig)
	}

	for _, a := range e.agents {
		if s, ok := a.(BudgetSetter); ok {
			s.SetBudget(budget)
		}
	}

	n := len(e.agents)
	res := &Results{
		Scores:      mat.NewDense(trials, n, nil),
		Optimal:     mat.NewDense(trials, n, nil),
		Budgets:     mat.NewDense(trials, n, nil),
		Survival:    mat.NewDense(trials, n, nil),
		Ledger:      mat.NewDense(trials, n, nil),
		Trials:      trials,
		Experiments: experiments,
		AgentIDs:    make([]string, n),
	}
	for i, a := range e.agents {
		res.AgentIDs[i] = a.GetID()
	}

	e.state.Status = "running"
	e.state.Repetition = 0
	e.state.Timestamp = time.Now()
	e.logger.Info("starting run", "label", e.label, "trials", trials, "experiments", experiments, "budget", budget, "agents", n)
	e.publish(messaging.Event{Type: messaging.RunStarted, Label: e.label, Budget: budget})

	for rep := 0; rep < experiments; rep++ {
		if err := ctx.Err(); err != nil {
			e.state.Status = "aborted"
			return nil, err
		}
		e.state.Repetition = rep
		e.publish(messaging.Event{Type: messaging.RepetitionStarted, Label: e.label, Repetition: rep})
		if err := e.runRepetition(ctx, rep, trials, budget, res); err != nil {
			e.state.Status = "failed"
			return nil, fmt.Errorf("repetition %d: %w", rep, err)
		}
		if e.metrics != nil {
			e.metrics.Repetitions.Inc()
		}
		e.logger.Debug("repetition finished", "label", e.label, "repetition", rep)
	}

	scale := 1 / float64(experiments)
	for _, m := range []*mat.Dense{res.Scores, res.Optimal, res.Budgets, res.Survival} {
		m.Scale(scale, m)
	}

	e.state.Status = "done"
	e.state.Timestamp = time.Now()
	e.logger.Info("run finished", "label", e.label)
	e.publish(messaging.Event{Type: messaging.RunFinished, Label: e.label})
	return res, nil
}

func (e *Environment) runRepetition(ctx context.Context, rep, trials int, budget float64, res *Results) error {
	if err := e.Reset(); err != nil {
		return err
	}

	ledger := res.Ledger
	for t := 0; t < trials; t++ {
		for i := range e.agents {
			ledger.Set(t, i, budget)
		}
	}

	n := e.bandit.Trials()
	trace := e.logger.Enabled(ctx, logging.LevelTrace)
	for t := 0; t < trials; t++ {
		last := t == trials-1
		for i, a := range e.agents {
			current := ledger.At(t, i)
			if current <= 0 {
				if !last {
					ledger.Set(t+1, i, current)
				}
				continue
			}

			addTo(res.Survival, t, i, 1)

			action, err := a.Choose(ctx)
			if err != nil {
				return err
			}
			reward, isOptimal, err := e.bandit.Pull(action)
			if err != nil {
				return fmt.Errorf("agent %s: %w", a.GetID(), err)
			}
			if err := a.Observe(reward); err != nil {
				return err
			}

			signed := e.mapping(reward, n)
			next := current + signed
			if !last {
				ledger.Set(t+1, i, next)
			}
			addTo(res.Budgets, t, i, current)
			addTo(res.Scores, t, i, signed)
			if isOptimal {
				addTo(res.Optimal, t, i, 1)
			}

			if trace {
				e.logger.Log(ctx, logging.LevelTrace, "step",
					"repetition", rep, "trial", t, "agent", a.GetID(),
					"action", action, "reward", reward, "budget", next)
			}
			if e.metrics != nil {
				e.metrics.Pulls.WithLabelValues(a.GetID()).Inc()
				if isOptimal {
					e.metrics.Optimal.WithLabelValues(a.GetID()).Inc()
				}
			}
			if next <= 0 {
				e.exhausted(rep, t, a.GetID(), next)
			}
		}
	}
	return nil
}

func (e *Environment) exhausted(rep, t int, agentID string, budget float64) {
	e.logger.Debug("agent exhausted its budget", "repetition", rep, "trial", t, "agent", agentID)
	if e.metrics != nil {
		e.metrics.Exhausted.WithLabelValues(agentID).Inc()
	}
	e.publish(messaging.Event{
		Type:       messaging.AgentExhausted,
		Label:      e.label,
		Repetition: rep,
		Trial:      t,
		AgentID:    agentID,
		Budget:     budget,
	})
}

func (e *Environment) publish(ev messaging.Event) {
	if e.broker == nil {
		return
	}
	msg := messaging.Message{
		From:      publisherID,
		Content:   ev,
		Timestamp: time.Now(),
	}
	if err := e.broker.Publish(msg); err != nil {
		e.logger.Warn("dropped event", "type", ev.Type, "err", err)
	}
}

func addTo(m *mat.Dense, i, j int, v float64) {
	m.Set(i, j, m.At(i, j)+v)
}
