package bandit

import "gonum.org/v1/gonum/stat/distuv"

// BernoulliBandit pays 1 with the arm's probability and 0 otherwise.
type BernoulliBandit struct {
	*base
}

// NewBernoulliBandit creates a k-armed Bernoulli bandit with freshly drawn action values.
func NewBernoulliBandit(k int, opts ...Option) (*BernoulliBandit, error) {
	b, err := newBase(k, opts)
	if err != nil {
		return nil, err
	}
	return &BernoulliBandit{base: b}, nil
}

func (b *BernoulliBandit) Trials() int {
	return 1
}

func (b *BernoulliBandit) Pull(action int) (float64, bool, error) {
	if err := b.checkAction(action); err != nil {
		return 0, false, err
	}
	d := distuv.Bernoulli{P: b.actionValues[action], Src: b.rng}
	return d.Rand(), action == b.optimal, nil
}
