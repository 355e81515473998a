package policy

import (
	"context"
	"fmt"
	"math"
)

// ucbEpsilon keeps the confidence term finite for arms that have been pulled.
const ucbEpsilon = 1e-9

// UCB picks the arm maximizing estimate + C*sqrt(ln(t+1)/n_i). Arms never
// pulled score +Inf, so every arm is tried once before any is repeated.
type UCB struct {
	C float64
}

func NewUCB(c float64) (*UCB, error) {
	if c < 0 || math.IsNaN(c) {
		return nil, fmt.Errorf("%w: ucb coefficient %v must be non-negative", ErrInvalidParam, c)
	}
	return &UCB{C: c}, nil
}

func (p *UCB) Name() string {
	return fmt.Sprintf("UCB (c=%g)", p.C)
}

func (p *UCB) Choose(ctx context.Context, s Snapshot) (int, error) {
	if s.Arms() == 0 {
		return 0, ErrNoArms
	}
	return argmax(ucbScores(s, p.C), s.Rand), nil
}

func ucbScores(s Snapshot, c float64) []float64 {
	scores := make([]float64, s.Arms())
	logT := math.Log(float64(s.T) + 1)
	for i, est := range s.Estimates {
		n := 0
		if i < len(s.Counts) {
			n = s.Counts[i]
		}
		if n == 0 {
			scores[i] = math.Inf(1)
			continue
		}
		scores[i] = est + c*math.Sqrt(logT/(float64(n)+ucbEpsilon))
	}
	return scores
}

// BudgetUCB is UCB with its exploration bonus scaled by the fraction of the
// survival budget still left, clamped to [0,1]. A nearly broke agent sticks
// to the arm it already believes is best.
type BudgetUCB struct {
	C float64
}

func NewBudgetUCB(c float64) (*BudgetUCB, error) {
	if c < 0 || math.IsNaN(c) {
		return nil, fmt.Errorf("%w: ucb coefficient %v must be non-negative", ErrInvalidParam, c)
	}
	return &BudgetUCB{C: c}, nil
}

func (p *BudgetUCB) Name() string {
	return fmt.Sprintf("budget UCB (c=%g)", p.C)
}

func (p *BudgetUCB) Choose(ctx context.Context, s Snapshot) (int, error) {
	if s.Arms() == 0 {
		return 0, ErrNoArms
	}
	return argmax(ucbScores(s, p.C*budgetWeight(s)), s.Rand), nil
}

func budgetWeight(s Snapshot) float64 {
	if s.InitialBudget <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, s.Budget/s.InitialBudget))
}
