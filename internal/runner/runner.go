package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrFailedToCreateScheduler = errors.New("failed to create scheduler")
	ErrTaskAlreadyExists       = errors.New("task already registered")
	ErrFailedToCreateJob       = errors.New("failed to create job")
	ErrFailedToGetNextRun      = errors.New("failed to get next run time")
	ErrTaskNotFound            = errors.New("task not found")
)

// Task is a named unit of background work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Runner manages scheduled task executions
type Runner struct {
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job
	tasks     map[string]Task
	mu        sync.RWMutex
}

// NewRunner creates a new scheduler runner
func NewRunner() (*Runner, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithGlobalJobOptions(
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		),
	)

	if err != nil {
		log.Error().Err(err).Msg("Failed to create scheduler")
		return nil, ErrFailedToCreateScheduler
	}

	return &Runner{
		scheduler: scheduler,
		jobs:      make(map[string]gocron.Job),
		tasks:     make(map[string]Task),
	}, nil
}

// RegisterTask adds a task to the runner. An empty schedule registers the task
// for immediate runs only.
func (r *Runner) RegisterTask(task Task, cronSchedule string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	taskName := task.Name()

	if _, exists := r.tasks[taskName]; exists {
		log.Error().Str("task", taskName).Msg("Task already registered")
		return ErrTaskAlreadyExists
	}

	r.tasks[taskName] = task

	if cronSchedule == "" {
		log.Warn().Str("task", taskName).Msg("No cron schedule provided, task runs on demand only")
		return nil
	}

	job, err := r.scheduler.NewJob(
		gocron.CronJob(
			cronSchedule,
			false,
		),
		gocron.NewTask(
			r.executeTask,
			taskName,
		),
		gocron.WithName(strings.Join([]string{"task", taskName}, "_")),
		gocron.WithTags([]string{"task", taskName}...),
	)

	if err != nil {
		delete(r.tasks, taskName)
		log.Error().Err(err).Str("task", taskName).Msg("Failed to schedule job for task")
		return errors.Join(ErrFailedToCreateJob, err)
	}

	r.jobs[taskName] = job

	log.Info().
		Str("task", taskName).
		Str("cron", cronSchedule).
		Msg("Task registered with scheduler")

	return nil
}

// executeTask is the function that gets called on schedule
func (r *Runner) executeTask(taskName string) {
	r.mu.RLock()
	task, exists := r.tasks[taskName]
	r.mu.RUnlock()

	if !exists {
		log.Error().Str("task", taskName).Msg("Task not found in registry")
		return
	}

	if err := ExecuteTask(context.Background(), task); err != nil {
		log.Error().
			Err(err).
			Str("task", taskName).
			Msg("Error executing task")
	}
}

// Start begins the scheduler
func (r *Runner) Start() {
	r.scheduler.Start()
	log.Info().Int("jobs", len(r.jobs)).Msg("Scheduler started")
}

// Stop halts the scheduler
func (r *Runner) Stop() error {
	return r.scheduler.Shutdown()
}

// RunTaskImmediately executes a task right now without waiting for schedule
func (r *Runner) RunTaskImmediately(ctx context.Context, taskName string) error {
	r.mu.RLock()
	task, exists := r.tasks[taskName]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskName)
	}

	err := ExecuteTask(ctx, task)
	if err != nil {
		log.Error().
			Err(err).
			Str("task", taskName).
			Msg("Error executing task immediately")
	}

	return err
}

// GetNextRunTime returns the next scheduled run for a task
func (r *Runner) GetNextRunTime(taskName string) (time.Time, error) {
	r.mu.RLock()
	job, exists := r.jobs[taskName]
	r.mu.RUnlock()

	if !exists {
		return time.Time{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskName)
	}

	next, err := job.NextRun()
	if err != nil {
		return time.Time{}, errors.Join(ErrFailedToGetNextRun, err)
	}
	return next, nil
}
