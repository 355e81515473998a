package policy

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/boristopalov/bandits/pkg/bandit"
	"github.com/boristopalov/bandits/pkg/memory"
	"github.com/boristopalov/bandits/pkg/providers"
)

const (
	CHOICE_PROMPT_TEMPLATE = `You are playing a %d-armed bandit. Each arm pays a reward with an unknown, fixed probability.
You have pulled arms %d times so far.%s

Current statistics per arm:
%s
%s
Pick the arm to pull next, balancing exploring uncertain arms against exploiting the best known arm.
Very briefly think step by step, then give the arm index following the string "ANSWER" like so: ANSWER: <index>`

	defaultHistoryInPrompt = 10
)

var answerRe = regexp.MustCompile(`ANSWER:\s*(-?\d+)`)

// LLM delegates the choice of arm to a language model.
type LLM struct {
	client  providers.Client
	model   string
	history int
}

// NewLLM creates a policy that asks model through client. historyLen bounds
// the number of recent decisions included in the prompt; non-positive
// values use the default.
func NewLLM(client providers.Client, model string, historyLen int) (*LLM, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: llm policy needs a client", ErrInvalidParam)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: llm policy needs a model", ErrInvalidParam)
	}
	if historyLen <= 0 {
		historyLen = defaultHistoryInPrompt
	}
	return &LLM{client: client, model: model, history: historyLen}, nil
}

func (p *LLM) Name() string {
	return "llm (" + p.model + ")"
}

func (p *LLM) Choose(ctx context.Context, s Snapshot) (int, error) {
	if s.Arms() == 0 {
		return 0, ErrNoArms
	}
	response, err := p.client.Complete(ctx, p.model, p.prompt(s))
	if err != nil {
		return 0, fmt.Errorf("failed to generate response: %w", err)
	}
	arm, err := parseArmResponse(response)
	if err != nil {
		return 0, err
	}
	if arm < 0 || arm >= s.Arms() {
		return 0, fmt.Errorf("%w: model answered arm %d for %d arms", bandit.ErrInvalidAction, arm, s.Arms())
	}
	return arm, nil
}

func (p *LLM) prompt(s Snapshot) string {
	var budget string
	if s.InitialBudget > 0 {
		budget = fmt.Sprintf(" Your survival budget is %.0f of an initial %.0f; each reward adds one unit, each miss costs one, and at zero you are out.", s.Budget, s.InitialBudget)
	}

	var arms strings.Builder
	for i, est := range s.Estimates {
		pulls := 0
		if i < len(s.Counts) {
			pulls = s.Counts[i]
		}
		fmt.Fprintf(&arms, "arm %d: estimated value %.3f after %d pulls\n", i, est, pulls)
	}

	var history string
	var recent []memory.Decision
	if s.History != nil {
		recent = s.History.Last(p.history)
	}
	if len(recent) > 0 {
		lines := make([]string, 0, len(recent))
		for _, d := range recent {
			lines = append(lines, fmt.Sprintf("step %d: pulled arm %d, reward %g", d.Step, d.Action, d.Reward))
		}
		history = "\nYour most recent pulls:\n" + strings.Join(lines, "\n") + "\n"
	}

	return fmt.Sprintf(CHOICE_PROMPT_TEMPLATE, s.Arms(), s.T, budget, arms.String(), history)
}

func parseArmResponse(response string) (int, error) {
	matches := answerRe.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("%w: could not find answer in response: %s", bandit.ErrInvalidAction, response)
	}
	// the final answer wins if the model restates it
	arm, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0, fmt.Errorf("%w: could not parse arm: %v", bandit.ErrInvalidAction, err)
	}
	return arm, nil
}
