package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ExecuteTask runs a single task with a per-run id attached to its logs.
func ExecuteTask(ctx context.Context, task Task) error {
	startedAt := time.Now()
	runID := uuid.New().String()

	taskLogger := log.With().
		Str("run_id", runID).
		Str("task", task.Name()).
		Logger()

	taskLogger.Debug().
		Time("starts", startedAt).
		Msg("Start execution of task")

	if err := task.Run(taskLogger.WithContext(ctx)); err != nil {
		taskLogger.Error().
			Err(err).
			Msg("Task failed")
		return fmt.Errorf("task %s: %w", task.Name(), err)
	}

	taskLogger.Debug().
		Dur("duration", time.Since(startedAt)).
		Msg("Completed execution of task")

	return nil
}
