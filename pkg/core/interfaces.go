package core

import (
	"context"
)

// Experiment coordinates the running of experiments
type Experiment interface {
	// Run executes the experiment according to configuration
	Run(ctx context.Context) error
	// Stop cancels a run in progress; it is a no-op otherwise
	Stop() error
	// GetStatus returns current experiment status
	GetStatus() ExperimentStatus
}
