package blocking

import (
	"fmt"
	"strings"
)

// BlockType is the action applied to every favoriter of an operation.
type BlockType string

const (
	BlockTypeMute  BlockType = "MUTE"
	BlockTypeBlock BlockType = "BLOCK"
)

var ErrInvalidBlockType = fmt.Errorf("invalid block type, expected one of %s, %s", BlockTypeMute, BlockTypeBlock)

func (b BlockType) String() string {
	return string(b)
}

func (b BlockType) IsValid() bool {
	return b == BlockTypeMute || b == BlockTypeBlock
}

// ParseBlockType accepts the canonical names case-insensitively.
func ParseBlockType(s string) (BlockType, error) {
	bt := BlockType(strings.ToUpper(strings.TrimSpace(s)))
	if !bt.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidBlockType, s)
	}
	return bt, nil
}

func (b *BlockType) UnmarshalText(text []byte) error {
	bt, err := ParseBlockType(string(text))
	if err != nil {
		return err
	}
	*b = bt
	return nil
}

func (b BlockType) MarshalText() ([]byte, error) {
	return []byte(b), nil
}

// Status of an operation. Idle is only ever reported, never persisted.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusRunning   Status = "RUNNING"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusStuck     Status = "STUCK"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Outcome of processing a single user.
type Outcome string

const (
	OutcomeBlocked     Outcome = "blocked"
	OutcomeFailed      Outcome = "failed"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeInterrupted Outcome = "interrupted"
)
