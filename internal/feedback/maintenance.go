package feedback

import (
	"context"
	"fmt"

	"fip/internal/scheduler"
)

// Maintenance task names.
const (
	TaskOptimize = "feedback-optimize"
	TaskCleanup  = "feedback-cleanup"
)

// Optimize prunes model history older than the configured maximum age and
// returns the number of observations removed.
func (s *Store) Optimize() int {
	s.mu.Lock()
	cutoff := s.clock.Now().Add(-s.cfg.HistoryMaxAge)
	removed := s.severity.prune(cutoff) +
		s.confidence.prune(cutoff) +
		s.priority.prune(cutoff) +
		s.autoFix.prune(cutoff)
	s.mu.Unlock()

	s.logger.Debug("Optimized feedback models", "removed", removed)
	return removed
}

// Cleanup evicts false-positive pattern records older than the configured
// maximum age and returns how many were evicted.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	cutoff := s.clock.Now().Add(-s.cfg.PatternMaxAge)
	removed := 0
	for key, rec := range s.falsePositives {
		if rec.Timestamp.Before(cutoff) {
			delete(s.falsePositives, key)
			removed++
		}
	}
	s.mu.Unlock()

	s.logger.Debug("Cleaned up feedback patterns", "removed", removed)
	if removed > 0 {
		s.persist()
	}
	return removed
}

// StartMaintenance schedules Optimize and Cleanup on the configured
// schedules. Calling it again while running is a no-op.
func (s *Store) StartMaintenance() error {
	if s.maintenance.Running() {
		return nil
	}
	if err := s.maintenance.Register(TaskOptimize, s.cfg.OptimizeSchedule, func(context.Context) error {
		s.Optimize()
		return nil
	}); err != nil {
		return fmt.Errorf("schedule optimize: %w", err)
	}
	if err := s.maintenance.Register(TaskCleanup, s.cfg.CleanupSchedule, func(context.Context) error {
		s.Cleanup()
		return nil
	}); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	s.maintenance.Start()
	return nil
}

// StopMaintenance cancels the maintenance schedules. No maintenance runs
// after it returns. It is safe to call when not started.
func (s *Store) StopMaintenance() {
	s.maintenance.Stop()
}

// MaintenanceStatus reports the maintenance tasks.
func (s *Store) MaintenanceStatus() []scheduler.TaskStatus {
	return s.maintenance.Status()
}
