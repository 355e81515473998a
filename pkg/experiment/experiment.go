package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/boristopalov/bandits/pkg/agent"
	"github.com/boristopalov/bandits/pkg/bandit"
	"github.com/boristopalov/bandits/pkg/config"
	"github.com/boristopalov/bandits/pkg/core"
	"github.com/boristopalov/bandits/pkg/environment"
	"github.com/boristopalov/bandits/pkg/messaging"
	"github.com/boristopalov/bandits/pkg/metrics"
	"github.com/boristopalov/bandits/pkg/policy"
	"github.com/boristopalov/bandits/pkg/providers"
)

// AgentSummary condenses one agent's columns of the run results.
type AgentSummary struct {
	ID              string
	Name            string
	MeanReward      float64 // mean signed reward over all trials
	OptimalFraction float64 // mean optimal-arm fraction over all trials
	FinalOptimal    float64
	FinalBudget     float64
	FinalSurvival   float64
}

// Belief pairs an agent with its current per-arm estimates.
type Belief struct {
	ID        string
	Name      string
	Estimates []float64
}

type Params struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Broker    messaging.Broker
	LLMClient providers.Client
}

type Option func(*Params)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Params) {
		p.Logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Params) {
		p.Metrics = m
	}
}

func WithBroker(b messaging.Broker) Option {
	return func(p *Params) {
		p.Broker = b
	}
}

// WithLLMClient supplies the client for llm policies instead of building
// one from the llm section of the configuration.
func WithLLMClient(c providers.Client) Option {
	return func(p *Params) {
		p.LLMClient = c
	}
}

// BanditExperiment is a configured bandit, its agents and the runner tying them together
type BanditExperiment struct {
	cfg     *config.ExperimentConfig
	env     *environment.Environment
	logger  *slog.Logger
	mu      sync.RWMutex
	status  core.ExperimentStatus
	cancel  context.CancelFunc
	results *environment.Results
}

var _ core.Experiment = (*BanditExperiment)(nil)

// NewBanditExperiment validates cfg and builds everything it describes.
func NewBanditExperiment(ctx context.Context, cfg *config.ExperimentConfig, opts ...Option) (*BanditExperiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	params := &Params{Logger: slog.Default()}
	for _, opt := range opts {
		opt(params)
	}

	rng := newRand(cfg.Seed)
	mapping, err := bandit.ParseRewardMapping(cfg.RewardMapping)
	if err != nil {
		return nil, err
	}

	b, err := buildBandit(cfg.Bandit, childRand(rng))
	if err != nil {
		return nil, fmt.Errorf("failed to create bandit: %w", err)
	}

	if params.LLMClient == nil && usesLLM(cfg) {
		client, err := providers.New(ctx, cfg.LLM.Provider,
			providers.WithAPIKey(cfg.LLM.APIKey),
			providers.WithBaseURL(cfg.LLM.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
		params.LLMClient = client
	}

	var agents []agent.Agent
	for i, ac := range cfg.Agents {
		for j := 0; j < ac.Count; j++ {
			a, err := buildAgent(b, ac, cfg, params.LLMClient, mapping, childRand(rng))
			if err != nil {
				return nil, fmt.Errorf("failed to create agent %d: %w", i, err)
			}
			params.Logger.Debug("created agent", "id", a.GetID(), "name", a.Name())
			agents = append(agents, a)
		}
	}

	envOpts := []environment.Option{
		environment.WithLabel(cfg.Name),
		environment.WithLogger(params.Logger),
		environment.WithRewardMapping(mapping),
	}
	if params.Metrics != nil {
		envOpts = append(envOpts, environment.WithMetrics(params.Metrics))
	}
	if params.Broker != nil {
		envOpts = append(envOpts, environment.WithBroker(params.Broker))
	}
	env, err := environment.NewEnvironment(b, agents, envOpts...)
	if err != nil {
		return nil, err
	}

	return &BanditExperiment{
		cfg:    cfg,
		env:    env,
		logger: params.Logger,
	}, nil
}

// Run executes the configured number of repetitions
func (e *BanditExperiment) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.status.Running {
		e.mu.Unlock()
		return fmt.Errorf("experiment %q is already running", e.cfg.Name)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.status.Running = true
	e.status.StartTime = time.Now()
	e.cancel = cancel
	e.mu.Unlock()

	results, err := e.env.Run(ctx, e.cfg.Trials, e.cfg.Experiments, e.cfg.Budget)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Running = false
	e.cancel = nil
	e.status.EndTime = time.Now()
	if err != nil {
		e.status.Errors = append(e.status.Errors, err)
		return fmt.Errorf("experiment %q failed: %w", e.cfg.Name, err)
	}
	e.results = results
	return nil
}

// Stop cancels the run in progress. The run returns at its next repetition
// boundary with context.Canceled.
func (e *BanditExperiment) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

func (e *BanditExperiment) GetStatus() core.ExperimentStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	status := e.status
	status.Errors = append([]error(nil), e.status.Errors...)
	return status
}

// Results returns the results of the last successful run, or nil.
func (e *BanditExperiment) Results() *environment.Results {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.results
}

func (e *BanditExperiment) Environment() *environment.Environment {
	return e.env
}

// Summary condenses the last run per agent. It is nil before a successful run.
func (e *BanditExperiment) Summary() []AgentSummary {
	res := e.Results()
	if res == nil {
		return nil
	}
	agents := e.env.GetAgents()
	last := res.Trials - 1
	summaries := make([]AgentSummary, len(agents))
	for i, a := range agents {
		summaries[i] = AgentSummary{
			ID:              a.GetID(),
			Name:            a.Name(),
			MeanReward:      stat.Mean(mat.Col(nil, i, res.Scores), nil),
			OptimalFraction: stat.Mean(mat.Col(nil, i, res.Optimal), nil),
			FinalOptimal:    res.Optimal.At(last, i),
			FinalBudget:     res.Budgets.At(last, i),
			FinalSurvival:   res.Survival.At(last, i),
		}
	}
	return summaries
}

// Beliefs returns every agent's current estimates, which after a run reflect
// the final repetition.
func (e *BanditExperiment) Beliefs() []Belief {
	agents := e.env.GetAgents()
	beliefs := make([]Belief, len(agents))
	for i, a := range agents {
		beliefs[i] = Belief{ID: a.GetID(), Name: a.Name(), Estimates: a.Estimates()}
	}
	return beliefs
}

func buildBandit(bc config.BanditConfig, rng *rand.Rand) (bandit.Bandit, error) {
	opts := []bandit.Option{bandit.WithRand(rng), bandit.WithHorizon(bc.Horizon)}
	if len(bc.Values) > 0 {
		opts = append(opts, bandit.WithGenerator(bandit.Fixed(bc.Values...)))
	}
	switch bc.Type {
	case config.BanditBinomial:
		return bandit.NewBinomialBandit(bc.Arms, bc.N, opts...)
	default:
		return bandit.NewBernoulliBandit(bc.Arms, opts...)
	}
}

func buildAgent(b bandit.Bandit, ac config.AgentConfig, cfg *config.ExperimentConfig, client providers.Client, mapping bandit.RewardMapping, rng *rand.Rand) (agent.Agent, error) {
	opts := []agent.AgentOption{
		agent.WithRand(rng),
		agent.WithRewardMapping(mapping),
		agent.WithBudget(cfg.Budget),
	}
	if ac.ID != "" {
		opts = append(opts, agent.WithAgentId(ac.ID))
	}
	if cfg.LLM.History > 0 {
		opts = append(opts, agent.WithHistory(cfg.LLM.History))
	}

	var p policy.Policy
	if ac.Policy.Type != "" {
		var err error
		p, err = buildPolicy(ac.Policy, cfg.LLM, client)
		if err != nil {
			return nil, err
		}
	}

	switch ac.Kind {
	case config.AgentBeta:
		return agent.NewBetaAgent(b, p, opts...)
	case config.AgentBudget:
		if p != nil {
			opts = append(opts, agent.WithPolicy(p))
		}
		return agent.NewBudgetAgent(b, ac.Policy.C, opts...)
	default:
		return agent.NewValueAgent(b, p, opts...)
	}
}

func buildPolicy(pc config.PolicyConfig, lc config.LLMConfig, client providers.Client) (policy.Policy, error) {
	switch pc.Type {
	case config.PolicyGreedy:
		return policy.NewGreedy(), nil
	case config.PolicyEpsilonGreedy:
		return policy.NewEpsilonGreedy(pc.Epsilon)
	case config.PolicyUCB:
		return policy.NewUCB(pc.C)
	case config.PolicyBudgetUCB:
		return policy.NewBudgetUCB(pc.C)
	case config.PolicyThompson:
		return policy.NewThompson(), nil
	case config.PolicyLLM:
		return policy.NewLLM(client, lc.Model, lc.History)
	default:
		return nil, fmt.Errorf("unknown policy %q", pc.Type)
	}
}

func usesLLM(cfg *config.ExperimentConfig) bool {
	for _, ac := range cfg.Agents {
		if ac.Policy.Type == config.PolicyLLM {
			return true
		}
	}
	return false
}

// newRand seeds the experiment's source; seed 0 draws a random seed.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func childRand(parent *rand.Rand) *rand.Rand {
	return rand.New(rand.NewPCG(parent.Uint64(), parent.Uint64()))
}
