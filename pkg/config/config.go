package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/boristopalov/bandits/pkg/bandit"
)

var ErrInvalidConfig = errors.New("config: invalid experiment configuration")

// Bandit types
const (
	BanditBernoulli = "bernoulli"
	BanditBinomial  = "binomial"
)

// Agent kinds
const (
	AgentValue  = "value"
	AgentBeta   = "beta"
	AgentBudget = "budget"
)

// Policy types
const (
	PolicyGreedy        = "greedy"
	PolicyEpsilonGreedy = "epsilon_greedy"
	PolicyUCB           = "ucb"
	PolicyBudgetUCB     = "budget_ucb"
	PolicyThompson      = "thompson"
	PolicyLLM           = "llm"
)

type ExperimentConfig struct {
	Name          string        `yaml:"name"`
	Trials        int           `yaml:"trials"`
	Experiments   int           `yaml:"experiments"`
	Budget        float64       `yaml:"budget"`
	Seed          uint64        `yaml:"seed"`
	RewardMapping string        `yaml:"reward_mapping"`
	Bandit        BanditConfig  `yaml:"bandit"`
	Agents        []AgentConfig `yaml:"agents"`
	LLM           LLMConfig     `yaml:"llm"`
	Logging       LogConfig     `yaml:"logging"`
}

type BanditConfig struct {
	Type    string    `yaml:"type"`
	Arms    int       `yaml:"arms"`
	N       int       `yaml:"n"`
	Horizon int       `yaml:"horizon"`
	Values  []float64 `yaml:"values"` // fixed action values instead of uniform draws
}

type AgentConfig struct {
	ID     string       `yaml:"id"`
	Kind   string       `yaml:"kind"`
	Count  int          `yaml:"count"`
	Policy PolicyConfig `yaml:"policy"`
}

type PolicyConfig struct {
	Type    string  `yaml:"type"`
	Epsilon float64 `yaml:"epsilon"`
	C       float64 `yaml:"c"`
}

// LLMConfig configures the provider behind the llm policy.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"` // supports ${VAR}
	History  int    `yaml:"history"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Metrics bool   `yaml:"metrics"`
}

// Default returns the settings used for anything a config file leaves out.
func Default() *ExperimentConfig {
	return &ExperimentConfig{
		Name:        "Multi-Armed Bandit",
		Trials:      1000,
		Experiments: 100,
		Budget:      10,
		Bandit: BanditConfig{
			Type: BanditBernoulli,
			Arms: 10,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			History:  10,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads a YAML experiment configuration. Environment variables
// referenced as ${VAR} are expanded before parsing.
func LoadConfig(path string) (*ExperimentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*ExperimentConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ExperimentConfig) normalize() {
	if c.Bandit.Type == BanditBernoulli && c.Bandit.N == 0 {
		c.Bandit.N = 1
	}
	for i := range c.Agents {
		if c.Agents[i].Count == 0 {
			c.Agents[i].Count = 1
		}
		if c.Agents[i].Kind == "" {
			c.Agents[i].Kind = AgentValue
		}
	}
}

// Validate reports the first problem that would keep the experiment from running.
func (c *ExperimentConfig) Validate() error {
	if c.Trials <= 0 {
		return fmt.Errorf("%w: trials must be positive, got %d", ErrInvalidConfig, c.Trials)
	}
	if c.Experiments <= 0 {
		return fmt.Errorf("%w: experiments must be positive, got %d", ErrInvalidConfig, c.Experiments)
	}
	if math.IsNaN(c.Budget) || math.IsInf(c.Budget, 0) {
		return fmt.Errorf("%w: budget must be finite", ErrInvalidConfig)
	}
	if _, err := bandit.ParseRewardMapping(c.RewardMapping); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Bandit.validate(); err != nil {
		return err
	}
	if len(c.Agents) == 0 {
		return fmt.Errorf("%w: no agents configured", ErrInvalidConfig)
	}
	for i, a := range c.Agents {
		if err := a.validate(); err != nil {
			return fmt.Errorf("agent %d: %w", i, err)
		}
		if a.Policy.Type == PolicyLLM && c.LLM.Model == "" {
			return fmt.Errorf("agent %d: %w: llm policy needs llm.model", i, ErrInvalidConfig)
		}
	}
	return nil
}

func (b BanditConfig) validate() error {
	switch b.Type {
	case BanditBernoulli, BanditBinomial:
	default:
		return fmt.Errorf("%w: unknown bandit type %q", ErrInvalidConfig, b.Type)
	}
	if b.Arms <= 0 {
		return fmt.Errorf("%w: bandit arms must be positive, got %d", ErrInvalidConfig, b.Arms)
	}
	switch {
	case b.Type == BanditBernoulli && b.N != 0 && b.N != 1:
		return fmt.Errorf("%w: bernoulli bandit has one trial per pull, got n=%d", ErrInvalidConfig, b.N)
	case b.Type == BanditBinomial && b.N <= 0:
		return fmt.Errorf("%w: binomial bandit needs a positive n, got %d", ErrInvalidConfig, b.N)
	}
	if len(b.Values) > 0 {
		if len(b.Values) != b.Arms {
			return fmt.Errorf("%w: %d values for %d arms", ErrInvalidConfig, len(b.Values), b.Arms)
		}
		for i, v := range b.Values {
			if math.IsNaN(v) || v < 0 || v > 1 {
				return fmt.Errorf("%w: value %d is %v, outside [0,1]", ErrInvalidConfig, i, v)
			}
		}
	}
	return nil
}

func (a AgentConfig) validate() error {
	if a.Count < 0 {
		return fmt.Errorf("%w: negative count %d", ErrInvalidConfig, a.Count)
	}
	if a.ID != "" && a.Count > 1 {
		return fmt.Errorf("%w: id %q given for %d agents", ErrInvalidConfig, a.ID, a.Count)
	}
	switch a.Kind {
	case AgentValue, AgentBeta, AgentBudget:
	default:
		return fmt.Errorf("%w: unknown agent kind %q", ErrInvalidConfig, a.Kind)
	}

	p := a.Policy
	switch p.Type {
	case "":
		if a.Kind != AgentBudget {
			return fmt.Errorf("%w: %s agent needs a policy", ErrInvalidConfig, a.Kind)
		}
	case PolicyGreedy, PolicyUCB, PolicyLLM:
	case PolicyBudgetUCB:
		if a.Kind != AgentBudget {
			return fmt.Errorf("%w: budget ucb needs a budget agent", ErrInvalidConfig)
		}
	case PolicyEpsilonGreedy:
		if p.Epsilon < 0 || p.Epsilon > 1 {
			return fmt.Errorf("%w: epsilon %v not in [0,1]", ErrInvalidConfig, p.Epsilon)
		}
	case PolicyThompson:
		if a.Kind == AgentValue {
			return fmt.Errorf("%w: thompson sampling needs a beta or budget agent", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, p.Type)
	}
	if p.C < 0 {
		return fmt.Errorf("%w: negative ucb coefficient %v", ErrInvalidConfig, p.C)
	}
	return nil
}

// BernoulliSuite compares the classic policies on a 10-armed Bernoulli bandit.
func BernoulliSuite() *ExperimentConfig {
	cfg := Default()
	cfg.Name = "Bayesian Bandits - Bernoulli"
	cfg.Bandit = BanditConfig{Type: BanditBernoulli, Arms: 10, N: 1, Horizon: 3 * 10000}
	cfg.Agents = []AgentConfig{
		{Kind: AgentValue, Count: 1, Policy: PolicyConfig{Type: PolicyEpsilonGreedy, Epsilon: 0.1}},
		{Kind: AgentValue, Count: 1, Policy: PolicyConfig{Type: PolicyUCB, C: 1}},
		{Kind: AgentBeta, Count: 1, Policy: PolicyConfig{Type: PolicyGreedy}},
		{Kind: AgentBudget, Count: 1, Policy: PolicyConfig{Type: PolicyBudgetUCB, C: 1}},
	}
	return cfg
}

// BinomialSuite runs the same agents on a bandit paying Binomial(5, p) per pull.
func BinomialSuite() *ExperimentConfig {
	cfg := BernoulliSuite()
	cfg.Name = "Bayesian Bandits - Binomial (n=5)"
	cfg.Bandit = BanditConfig{Type: BanditBinomial, Arms: 10, N: 5, Horizon: 3 * 1000}
	return cfg
}

var suites = map[string]func() *ExperimentConfig{
	"bernoulli": BernoulliSuite,
	"binomial":  BinomialSuite,
}

// Suite returns a fresh copy of a named preset.
func Suite(name string) (*ExperimentConfig, error) {
	build, ok := suites[name]
	if !ok {
		return nil, fmt.Errorf("unknown suite %q (have %v)", name, SuiteNames())
	}
	return build(), nil
}

func SuiteNames() []string {
	names := make([]string, 0, len(suites))
	for name := range suites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
