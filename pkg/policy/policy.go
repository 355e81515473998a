// Package policy holds the decision rules agents use to pick an arm from
// their current per-arm statistics.
package policy

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/boristopalov/bandits/pkg/memory"
)

var (
	ErrNoArms = errors.New("policy: snapshot has no arms")
	// ErrNeedsPosterior is returned by policies that sample from Beta
	// posteriors when the agent does not keep any.
	ErrNeedsPosterior = errors.New("policy: snapshot has no beta posterior")
	ErrInvalidParam   = errors.New("policy: invalid parameter")
)

// Snapshot is the read-only view of an agent's statistics handed to a policy.
type Snapshot struct {
	Estimates []float64 // per-arm value estimates
	Counts    []int     // per-arm pull counts
	T         int       // total pulls so far

	// Beta posterior shape parameters; nil for non-Bayesian agents
	Alpha []float64
	Beta  []float64

	// Survival budget mirror; InitialBudget is zero for agents that do not track one
	Budget        float64
	InitialBudget float64

	History *memory.Memory // the agent's recent decisions; may be nil
	Rand    *rand.Rand
}

// Arms returns the number of arms in the snapshot.
func (s Snapshot) Arms() int {
	return len(s.Estimates)
}

// Policy selects exactly one arm index in [0, k).
type Policy interface {
	Name() string
	Choose(ctx context.Context, s Snapshot) (int, error)
}

// argmax returns the index of the largest score, breaking ties uniformly at
// random among the maximizers. With a nil rng the first maximizer wins.
func argmax(scores []float64, rng *rand.Rand) int {
	best := scores[0]
	ties := []int{0}
	for i := 1; i < len(scores); i++ {
		switch {
		case scores[i] > best:
			best = scores[i]
			ties = ties[:0]
			ties = append(ties, i)
		case scores[i] == best:
			ties = append(ties, i)
		}
	}
	if len(ties) == 1 || rng == nil {
		return ties[0]
	}
	return ties[rng.IntN(len(ties))]
}
