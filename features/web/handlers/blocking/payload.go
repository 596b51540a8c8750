package blocking

import (
	"eksiblock/features/blocking"
	"eksiblock/features/commands"
	"eksiblock/features/history"
)

// EntryInput is the body of start and merge requests.
type EntryInput struct {
	EntryID               string `json:"entry_id" validate:"required"`
	BlockType             string `json:"block_type" validate:"required"`
	IncludeThreadBlocking bool   `json:"include_thread_blocking"`
}

func (in EntryInput) blockType() (blocking.BlockType, error) {
	return blocking.ParseBlockType(in.BlockType)
}

// HistoryQuery filters the history listing.
type HistoryQuery struct {
	Status string `query:"status"`
	Limit  int    `query:"limit" validate:"gte=0,lte=500"`
}

func (q HistoryQuery) options() history.ListOptions {
	limit := q.Limit
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	return history.ListOptions{Status: blocking.Status(q.Status), Limit: limit}
}

const defaultHistoryLimit = 50

// HistoryPayload wraps the listed records.
type HistoryPayload struct {
	Operations []history.Record `json:"operations"`
	Count      int              `json:"count"`
}

func NewHistoryPayload(records []history.Record) *HistoryPayload {
	return &HistoryPayload{Operations: records, Count: len(records)}
}

// CommandPayload is the data part of a command response.
type CommandPayload struct {
	Command string `json:"command"`
	Result  any    `json:"result,omitempty"`
}

func newCommandPayload(cmd commands.Command, res commands.Result) *CommandPayload {
	return &CommandPayload{Command: cmd.Name(), Result: res.Data}
}
