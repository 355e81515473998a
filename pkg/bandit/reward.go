package bandit

import "fmt"

// RewardMapping converts a raw pull reward into the signed amount added to
// a survival budget. n is the bandit's number of trials per pull.
type RewardMapping func(reward float64, n int) float64

// MajoritySign pays +1 when more than half of the pull's trials succeeded
// and -1 otherwise. For a Bernoulli bandit it equals reward*2-1.
func MajoritySign(reward float64, n int) float64 {
	if 2*reward > float64(n) {
		return 1
	}
	return -1
}

// Linear is the raw reward*2-1 remap. For Binomial bandits it yields values
// outside {-1,+1}.
func Linear(reward float64, n int) float64 {
	return reward*2 - 1
}

// ParseRewardMapping resolves a mapping by name. The empty name selects
// MajoritySign.
func ParseRewardMapping(name string) (RewardMapping, error) {
	switch name {
	case "", "majority":
		return MajoritySign, nil
	case "linear":
		return Linear, nil
	default:
		return nil, fmt.Errorf("%w: unknown reward mapping %q", ErrInvalidConfig, name)
	}
}
