// Package scheduler runs named maintenance tasks on cron-style schedules
// against an injectable clock.
package scheduler

import (
	"context"
	"time"
)

// TaskHandler executes a scheduled task
type TaskHandler func(ctx context.Context) error

// Task status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// TaskStatus describes a registered task.
type TaskStatus struct {
	Name         string     `json:"name"`
	Expression   string     `json:"expression"`
	NextRun      time.Time  `json:"nextRun"`
	LastRun      *time.Time `json:"lastRun,omitempty"`
	LastStatus   string     `json:"lastStatus,omitempty"`
	LastDuration int64      `json:"lastDuration,omitempty"` // milliseconds
	LastError    string     `json:"lastError,omitempty"`
	Runs         int        `json:"runs"`
}

// markRun records the outcome of one execution.
func (s *TaskStatus) markRun(at time.Time, duration time.Duration, err error) {
	s.LastRun = &at
	s.LastDuration = duration.Milliseconds()
	s.Runs++
	if err != nil {
		s.LastStatus = StatusFailed
		s.LastError = err.Error()
		return
	}
	s.LastStatus = StatusSuccess
	s.LastError = ""
}
