package core

import (
	"time"
)

type ExperimentStatus struct {
	Running   bool
	StartTime time.Time
	EndTime   time.Time
	Errors    []error
}

// Duration is the wall time of the last run, or of the current one so far.
func (s ExperimentStatus) Duration() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	if s.Running || s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}
