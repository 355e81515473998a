package bandit

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

// BinomialBandit runs n independent Bernoulli trials per pull and pays the
// number of successes.
type BinomialBandit struct {
	*base
	n int
}

// NewBinomialBandit creates a k-armed bandit whose pulls are Binomial(n, p_arm).
func NewBinomialBandit(k, n int, opts ...Option) (*BinomialBandit, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: trials per pull must be positive, got %d", ErrInvalidConfig, n)
	}
	b, err := newBase(k, opts)
	if err != nil {
		return nil, err
	}
	return &BinomialBandit{base: b, n: n}, nil
}

func (b *BinomialBandit) Trials() int {
	return b.n
}

func (b *BinomialBandit) Pull(action int) (float64, bool, error) {
	if err := b.checkAction(action); err != nil {
		return 0, false, err
	}
	d := distuv.Binomial{N: float64(b.n), P: b.actionValues[action], Src: b.rng}
	return d.Rand(), action == b.optimal, nil
}
