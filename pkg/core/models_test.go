package core

import (
	"testing"
	"time"
)

func TestExperimentStatusDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("not started", func(t *testing.T) {
		if d := (ExperimentStatus{}).Duration(); d != 0 {
			t.Errorf("expected 0, got %v", d)
		}
	})

	t.Run("finished", func(t *testing.T) {
		s := ExperimentStatus{StartTime: start, EndTime: start.Add(3 * time.Second)}
		if d := s.Duration(); d != 3*time.Second {
			t.Errorf("expected 3s, got %v", d)
		}
	})

	t.Run("running", func(t *testing.T) {
		s := ExperimentStatus{Running: true, StartTime: time.Now().Add(-time.Minute)}
		if d := s.Duration(); d < time.Minute {
			t.Errorf("expected at least 1m, got %v", d)
		}
	})
}
