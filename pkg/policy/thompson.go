package policy

import (
	"context"

	"gonum.org/v1/gonum/stat/distuv"
)

// Thompson draws one sample from every arm's Beta posterior and plays the
// arm with the largest draw.
type Thompson struct{}

func NewThompson() *Thompson {
	return &Thompson{}
}

func (p *Thompson) Name() string {
	return "thompson"
}

func (p *Thompson) Choose(ctx context.Context, s Snapshot) (int, error) {
	if s.Arms() == 0 {
		return 0, ErrNoArms
	}
	if len(s.Alpha) != s.Arms() || len(s.Beta) != s.Arms() {
		return 0, ErrNeedsPosterior
	}
	samples := make([]float64, s.Arms())
	for i := range samples {
		d := distuv.Beta{Alpha: s.Alpha[i], Beta: s.Beta[i]}
		if s.Rand != nil {
			d.Src = s.Rand
		}
		samples[i] = d.Rand()
	}
	return argmax(samples, s.Rand), nil
}
