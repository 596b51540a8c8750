package runner

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	ErrRunnerCreate  = errors.New("failed to create runner")
	ErrTaskRegister  = errors.New("failed to register tasks")
	ErrRunnerNotInit = errors.New("runner not initialized")
)

var (
	globalRunner *Runner
	initOnce     sync.Once
	initError    error
)

// Scheduled pairs a task with its cron expression.
type Scheduled struct {
	Task     Task
	Schedule string
}

// InitializeRunner creates the global runner, registers tasks and starts it.
func InitializeRunner(tasks ...Scheduled) (*Runner, error) {
	initOnce.Do(func() {
		r, err := NewRunner()
		if err != nil {
			log.Err(err).Msg("Failed to create runner")
			initError = ErrRunnerCreate
			return
		}

		for _, s := range tasks {
			if err := r.RegisterTask(s.Task, s.Schedule); err != nil {
				log.Err(err).Str("task", s.Task.Name()).Msg("Failed to register task")
				_ = r.Stop()
				initError = errors.Join(ErrTaskRegister, err)
				return
			}
		}

		globalRunner = r
		globalRunner.Start()
		log.Info().Msg("Global scheduler runner initialized and started")
	})

	return globalRunner, initError
}

// GetRunner returns the global runner instance
func GetRunner() (*Runner, error) {
	if globalRunner == nil {
		log.Error().Msg("Runner not initialized")
		return nil, ErrRunnerNotInit
	}
	return globalRunner, nil
}

// ShutdownRunner stops the global runner
func ShutdownRunner() error {
	if globalRunner == nil {
		return nil
	}
	return globalRunner.Stop()
}
