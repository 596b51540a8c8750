package blocking

import (
	"context"

	"github.com/rs/zerolog"
)

// Progress is reported after every processed user and on loop exit.
type Progress struct {
	OperationID  string `json:"operationId"`
	CurrentCount int    `json:"currentCount"`
	TotalCount   int    `json:"totalCount"`
	IsCompleted  bool   `json:"isCompleted"`
	IsAborted    bool   `json:"isAborted"`
}

// Notifier receives UI-facing callbacks. Implementations must not block.
type Notifier interface {
	OnProgress(p Progress)
	OnComplete(total int)
	OnError(message string)
	OnAbort()
}

// Recorder receives counters for metrics backends.
type Recorder interface {
	UserProcessed(blockType string, outcome string)
	RetryAttempted(blockType string)
	CheckpointFailed()
	MergeResolved(result string)
	OperationFinished(status string)
	PendingUsers(count int)
}

// HistoryRecorder keeps an audit trail of operations.
type HistoryRecorder interface {
	Record(ctx context.Context, op *BlockOperation) error
}

// KnownUsers remembers users already handled by earlier operations.
type KnownUsers interface {
	Has(username string, blockType BlockType) bool
	Add(username string, blockType BlockType) error
}

type NopNotifier struct{}

func (NopNotifier) OnProgress(Progress) {}
func (NopNotifier) OnComplete(int)      {}
func (NopNotifier) OnError(string)      {}
func (NopNotifier) OnAbort()            {}

type nopRecorder struct{}

func (nopRecorder) UserProcessed(string, string) {}
func (nopRecorder) RetryAttempted(string)        {}
func (nopRecorder) CheckpointFailed()            {}
func (nopRecorder) MergeResolved(string)         {}
func (nopRecorder) OperationFinished(string)     {}
func (nopRecorder) PendingUsers(int)             {}

// LogNotifier writes every callback to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) OnProgress(p Progress) {
	n.Logger.Info().
		Str("operation_id", p.OperationID).
		Int("current", p.CurrentCount).
		Int("total", p.TotalCount).
		Bool("completed", p.IsCompleted).
		Bool("aborted", p.IsAborted).
		Msg("Blocking progress")
}

func (n LogNotifier) OnComplete(total int) {
	n.Logger.Info().Int("total", total).Msg("Blocking operation completed")
}

func (n LogNotifier) OnError(message string) {
	n.Logger.Warn().Str("reason", message).Msg("Blocking operation error")
}

func (n LogNotifier) OnAbort() {
	n.Logger.Warn().Msg("Blocking operation aborted")
}

// MultiNotifier fans callbacks out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) OnProgress(p Progress) {
	for _, n := range m {
		n.OnProgress(p)
	}
}

func (m MultiNotifier) OnComplete(total int) {
	for _, n := range m {
		n.OnComplete(total)
	}
}

func (m MultiNotifier) OnError(message string) {
	for _, n := range m {
		n.OnError(message)
	}
}

func (m MultiNotifier) OnAbort() {
	for _, n := range m {
		n.OnAbort()
	}
}
