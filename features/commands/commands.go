package commands

import (
	"eksiblock/features/blocking"
)

// Command is one of the operations the workflow accepts from outside the
// process. The set is closed.
type Command interface {
	Name() string
	command()
}

// StartBlocking starts an operation, or merges into the running one.
type StartBlocking struct {
	EntryID               string             `json:"entry_id" validate:"required"`
	BlockType             blocking.BlockType `json:"block_type" validate:"required,oneof=MUTE BLOCK"`
	IncludeThreadBlocking bool               `json:"include_thread_blocking"`
}

// MergeEntry only folds an entry into the running operation.
type MergeEntry struct {
	EntryID               string             `json:"entry_id" validate:"required"`
	BlockType             blocking.BlockType `json:"block_type" validate:"required,oneof=MUTE BLOCK"`
	IncludeThreadBlocking bool               `json:"include_thread_blocking"`
}

type StopBlocking struct{}

type ForceStopBlocking struct{}

type ResumeBlocking struct{}

type ResetStuckState struct{}

type GetStatus struct{}

func (StartBlocking) Name() string     { return "start_blocking" }
func (MergeEntry) Name() string        { return "merge_entry" }
func (StopBlocking) Name() string      { return "stop_blocking" }
func (ForceStopBlocking) Name() string { return "force_stop_blocking" }
func (ResumeBlocking) Name() string    { return "resume_blocking" }
func (ResetStuckState) Name() string   { return "reset_stuck_state" }
func (GetStatus) Name() string         { return "get_status" }

func (StartBlocking) command()     {}
func (MergeEntry) command()        {}
func (StopBlocking) command()      {}
func (ForceStopBlocking) command() {}
func (ResumeBlocking) command()    {}
func (ResetStuckState) command()   {}
func (GetStatus) command()         {}
