package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eksiblock/features/blocking"
	"eksiblock/features/favorites"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidCommand = errors.New("invalid command")
)

// Workflow is the part of the blocking workflow the executor drives.
type Workflow interface {
	StartBlocking(ctx context.Context, entryID string, blockType blocking.BlockType, includeThread bool) (blocking.Result, error)
	AddEntryToCurrentOperation(ctx context.Context, entryID string, blockType blocking.BlockType, includeThread bool) (bool, error)
	StopBlocking(ctx context.Context) error
	ForceStopBlocking(ctx context.Context) error
	ResumeBlocking(ctx context.Context) (blocking.Result, error)
	ResetStuckState(ctx context.Context) (blocking.Result, error)
	GetStatus() blocking.StatusReport
}

// Result is what every command answers with.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Executor validates commands and dispatches them to the workflow.
type Executor struct {
	wf       Workflow
	validate *validator.Validate
}

func NewExecutor(wf Workflow) *Executor {
	return &Executor{wf: wf, validate: validator.New()}
}

func (e *Executor) Execute(ctx context.Context, cmd Command) (Result, error) {
	if cmd == nil {
		return Result{Message: ErrUnknownCommand.Error()}, ErrUnknownCommand
	}

	logger := log.With().Str("command", cmd.Name()).Logger()

	if err := e.validate.Struct(cmd); err != nil {
		err = validationError(err)
		logger.Debug().Err(err).Msg("Command rejected")
		return Result{Message: err.Error()}, err
	}

	res, err := e.dispatch(ctx, cmd)
	if err != nil {
		logger.Warn().Err(err).Msg("Command failed")
		if res.Message == "" {
			res.Message = err.Error()
		}
		res.Success = false
		return res, err
	}

	logger.Debug().Str("message", res.Message).Msg("Command executed")
	return res, nil
}

func (e *Executor) dispatch(ctx context.Context, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case StartBlocking:
		entryID, err := favorites.ParseEntryID(c.EntryID)
		if err != nil {
			return Result{}, err
		}
		res, err := e.wf.StartBlocking(ctx, entryID, c.BlockType, c.IncludeThreadBlocking)
		return fromWorkflow(res), err

	case MergeEntry:
		entryID, err := favorites.ParseEntryID(c.EntryID)
		if err != nil {
			return Result{}, err
		}
		ok, err := e.wf.AddEntryToCurrentOperation(ctx, entryID, c.BlockType, c.IncludeThreadBlocking)
		if err != nil {
			return Result{}, err
		}
		return Result{Success: ok, Message: fmt.Sprintf("entry %s merged", entryID), Data: e.wf.GetStatus()}, nil

	case StopBlocking:
		if err := e.wf.StopBlocking(ctx); err != nil {
			return Result{}, err
		}
		return Result{Success: true, Message: "operation paused", Data: e.wf.GetStatus()}, nil

	case ForceStopBlocking:
		if err := e.wf.ForceStopBlocking(ctx); err != nil {
			return Result{}, err
		}
		return Result{Success: true, Message: "operation cancelled"}, nil

	case ResumeBlocking:
		res, err := e.wf.ResumeBlocking(ctx)
		return fromWorkflow(res), err

	case ResetStuckState:
		res, err := e.wf.ResetStuckState(ctx)
		return fromWorkflow(res), err

	case GetStatus:
		return Result{Success: true, Data: e.wf.GetStatus()}, nil
	}

	return Result{}, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name())
}

func fromWorkflow(res blocking.Result) Result {
	return Result{Success: res.Success, Message: res.Message, Data: res}
}

func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Errorf("%w: %s", ErrInvalidCommand, strings.Join(msgs, ", "))
}
