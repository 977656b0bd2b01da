// Package cron runs the assistant's maintenance work on cron schedules:
// the memory forgetting sweep and idle conversation lane pruning.
package cron

import "context"

// Job is a periodic background task.
type Job interface {
	// Name identifies the job in logs and must be unique per scheduler.
	Name() string

	// Schedule returns a 5-field cron expression.
	Schedule() string

	// Run executes one tick. It should return promptly once ctx is done.
	Run(ctx context.Context) error
}
