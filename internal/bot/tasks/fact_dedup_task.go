package tasks

import (
	"context"
	"fmt"
	"time"
)

// newFactDedupTask creates the scheduled task function for the fact
// deduplication sweep. The write path already prevents duplicates; this is
// the periodic safety net for facts written by older extraction rules.
func newFactDedupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "fact_dedup")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled fact dedup sweep...")
		startTime := time.Now()

		removed, err := deps.Memory.DeduplicateAllUsers(ctx)

		duration := time.Since(startTime)
		if err != nil {
			log.ErrorContext(ctx, "Fact dedup sweep failed", "error", err, "duration", duration)
			return fmt.Errorf("fact dedup sweep failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled fact dedup sweep completed", "removed", removed, "duration", duration)
		return nil
	}
}
