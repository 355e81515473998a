package experiment

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/boristopalov/bandits/pkg/agent"
	"github.com/boristopalov/bandits/pkg/bandit"
	"github.com/boristopalov/bandits/pkg/config"
	"github.com/boristopalov/bandits/pkg/metrics"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// MockLLMClient always answers with the same arm
type MockLLMClient struct {
	calls int
}

func (m *MockLLMClient) Complete(ctx context.Context, model string, prompt string) (string, error) {
	m.calls++
	return "ANSWER: 0", nil
}

func smallSuite(name string) *config.ExperimentConfig {
	cfg, err := config.Suite(name)
	if err != nil {
		panic(err)
	}
	cfg.Trials = 50
	cfg.Experiments = 4
	cfg.Seed = 99
	return cfg
}

func TestNewBanditExperiment(t *testing.T) {
	ctx := context.Background()

	t.Run("builds the bernoulli suite", func(t *testing.T) {
		exp, err := NewBanditExperiment(ctx, smallSuite("bernoulli"), WithLogger(quiet))
		require.NoError(t, err)

		env := exp.Environment()
		assert.Equal(t, "Bayesian Bandits - Bernoulli", env.GetLabel())
		assert.Equal(t, 10, env.GetBandit().K())
		agents := env.GetAgents()
		require.Len(t, agents, 4)
		assert.IsType(t, &agent.ValueAgent{}, agents[0])
		assert.IsType(t, &agent.ValueAgent{}, agents[1])
		assert.IsType(t, &agent.BetaAgent{}, agents[2])
		assert.IsType(t, &agent.BudgetAgent{}, agents[3])
		assert.Equal(t, "UCB (c=1)", agents[1].Name())
	})

	t.Run("builds the binomial suite", func(t *testing.T) {
		exp, err := NewBanditExperiment(ctx, smallSuite("binomial"), WithLogger(quiet))
		require.NoError(t, err)
		b, ok := exp.Environment().GetBandit().(*bandit.BinomialBandit)
		require.True(t, ok)
		assert.Equal(t, 5, b.Trials())
		assert.Equal(t, 3000, b.Horizon())
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := smallSuite("bernoulli")
		cfg.Trials = 0
		_, err := NewBanditExperiment(ctx, cfg)
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("expands agent counts and ids", func(t *testing.T) {
		cfg := smallSuite("bernoulli")
		cfg.Agents = []config.AgentConfig{
			{ID: "solo", Kind: config.AgentBeta, Count: 1, Policy: config.PolicyConfig{Type: config.PolicyThompson}},
			{Kind: config.AgentValue, Count: 3, Policy: config.PolicyConfig{Type: config.PolicyGreedy}},
		}
		exp, err := NewBanditExperiment(ctx, cfg, WithLogger(quiet))
		require.NoError(t, err)
		agents := exp.Environment().GetAgents()
		require.Len(t, agents, 4)
		assert.Equal(t, "solo", agents[0].GetID())
	})
}

func TestRunAndSummary(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	exp, err := NewBanditExperiment(ctx, smallSuite("bernoulli"), WithLogger(quiet), WithMetrics(m))
	require.NoError(t, err)

	assert.Nil(t, exp.Summary())
	require.NoError(t, exp.Run(ctx))

	status := exp.GetStatus()
	assert.False(t, status.Running)
	assert.Empty(t, status.Errors)
	assert.False(t, status.EndTime.Before(status.StartTime))

	res := exp.Results()
	require.NotNil(t, res)
	r, c := res.Scores.Dims()
	assert.Equal(t, 50, r)
	assert.Equal(t, 4, c)

	summary := exp.Summary()
	require.Len(t, summary, 4)
	for i, s := range summary {
		assert.Equal(t, res.AgentIDs[i], s.ID)
		assert.GreaterOrEqual(t, s.MeanReward, -1.0)
		assert.LessOrEqual(t, s.MeanReward, 1.0)
		assert.GreaterOrEqual(t, s.OptimalFraction, 0.0)
		assert.LessOrEqual(t, s.OptimalFraction, 1.0)
		assert.GreaterOrEqual(t, s.FinalSurvival, 0.0)
		assert.LessOrEqual(t, s.FinalSurvival, 1.0)
	}

	beliefs := exp.Beliefs()
	require.Len(t, beliefs, 4)
	for _, b := range beliefs {
		assert.Len(t, b.Estimates, 10)
	}

	totals, err := m.Totals()
	require.NoError(t, err)
	assert.Equal(t, 4.0, totals["bandits_repetitions_total"])
	assert.Equal(t, mat.Sum(res.Survival)*4, totals["bandits_pulls_total"])
}

func TestSeedReproducesResults(t *testing.T) {
	ctx := context.Background()
	run := func() *mat.Dense {
		exp, err := NewBanditExperiment(ctx, smallSuite("binomial"), WithLogger(quiet))
		require.NoError(t, err)
		require.NoError(t, exp.Run(ctx))
		return exp.Results().Scores
	}
	assert.True(t, mat.Equal(run(), run()))
}

func TestLLMAgents(t *testing.T) {
	ctx := context.Background()
	cfg := smallSuite("bernoulli")
	cfg.Trials = 5
	cfg.Experiments = 1
	cfg.Budget = 100
	cfg.Agents = []config.AgentConfig{
		{Kind: config.AgentBudget, Count: 1, Policy: config.PolicyConfig{Type: config.PolicyLLM}},
	}

	client := &MockLLMClient{}
	exp, err := NewBanditExperiment(ctx, cfg, WithLogger(quiet), WithLLMClient(client))
	require.NoError(t, err)
	require.NoError(t, exp.Run(ctx))

	assert.Equal(t, 5, client.calls)
	counts := exp.Environment().GetAgents()[0].(*agent.BudgetAgent).Counts()
	assert.Equal(t, 5, counts[0])
}

func TestRunRecordsErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exp, err := NewBanditExperiment(ctx, smallSuite("bernoulli"), WithLogger(quiet))
	require.NoError(t, err)
	cancel()

	assert.ErrorIs(t, exp.Run(ctx), context.Canceled)
	assert.Len(t, exp.GetStatus().Errors, 1)
	assert.Nil(t, exp.Results())
}

type stoppingClient struct {
	stop func()
}

func (c *stoppingClient) Complete(ctx context.Context, model string, prompt string) (string, error) {
	c.stop()
	return "ANSWER: 1", nil
}

func TestStop(t *testing.T) {
	ctx := context.Background()
	cfg := smallSuite("bernoulli")
	cfg.Trials = 2
	cfg.Experiments = 3
	cfg.Agents = []config.AgentConfig{
		{Kind: config.AgentValue, Count: 1, Policy: config.PolicyConfig{Type: config.PolicyLLM}},
	}

	client := &stoppingClient{}
	exp, err := NewBanditExperiment(ctx, cfg, WithLogger(quiet), WithLLMClient(client))
	require.NoError(t, err)
	client.stop = func() { _ = exp.Stop() }

	assert.NoError(t, exp.Stop())
	assert.ErrorIs(t, exp.Run(ctx), context.Canceled)
	assert.False(t, exp.GetStatus().Running)
	assert.Nil(t, exp.Results())
}
