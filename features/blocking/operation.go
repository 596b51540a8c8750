package blocking

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// BlockOperation is the persisted BlockerState record.
type BlockOperation struct {
	OperationID           string         `json:"operationId"`
	EntryID               string         `json:"entryId"`
	EntryIDs              []string       `json:"entryIds,omitempty"`
	BlockType             BlockType      `json:"blockType"`
	IncludeThreadBlocking bool           `json:"includeThreadBlocking"`
	TotalUserCount        int            `json:"totalUserCount"`
	ProcessedUsers        []string       `json:"processedUsers"`
	PendingUsers          []string       `json:"pendingUsers"`
	FailedUsers           []string       `json:"failedUsers,omitempty"`
	SkippedUsers          []string       `json:"skippedUsers,omitempty"`
	RetryCounts           map[string]int `json:"retryCounts"`
	Status                Status         `json:"status"`
	Timestamp             int64          `json:"timestamp"`
	CreatedAt             int64          `json:"createdAt,omitempty"`
}

// NewBlockOperation creates a RUNNING operation whose queue is the deduplicated users.
func NewBlockOperation(entryID string, blockType BlockType, includeThread bool, users []string, now time.Time) *BlockOperation {
	pending := lo.Uniq(lo.Compact(users))
	return &BlockOperation{
		OperationID:           uuid.New().String(),
		EntryID:               entryID,
		EntryIDs:              []string{entryID},
		BlockType:             blockType,
		IncludeThreadBlocking: includeThread,
		TotalUserCount:        len(pending),
		ProcessedUsers:        []string{},
		PendingUsers:          pending,
		RetryCounts:           map[string]int{},
		Status:                StatusRunning,
		Timestamp:             now.UnixMilli(),
		CreatedAt:             now.UnixMilli(),
	}
}

// Normalize fills absent fields and repairs the record so the set invariants hold.
// It is applied to every record read from the store.
func (o *BlockOperation) Normalize() {
	if o.RetryCounts == nil {
		o.RetryCounts = map[string]int{}
	}
	if o.ProcessedUsers == nil {
		o.ProcessedUsers = []string{}
	}
	if o.OperationID == "" {
		o.OperationID = uuid.New().String()
	}
	if len(o.EntryIDs) == 0 && o.EntryID != "" {
		o.EntryIDs = []string{o.EntryID}
	}
	if o.BlockType == "" {
		o.BlockType = BlockTypeMute
	}

	o.ProcessedUsers = lo.Uniq(lo.Compact(o.ProcessedUsers))
	processed := lo.SliceToMap(o.ProcessedUsers, func(u string) (string, struct{}) { return u, struct{}{} })
	o.PendingUsers = lo.Filter(lo.Uniq(lo.Compact(o.PendingUsers)), func(u string, _ int) bool {
		_, done := processed[u]
		return !done
	})
	for user := range o.RetryCounts {
		if _, done := processed[user]; done {
			delete(o.RetryCounts, user)
		}
	}

	o.TotalUserCount = len(o.ProcessedUsers) + len(o.PendingUsers)

	if o.Status == "" || o.Status == StatusIdle {
		o.Status = StatusPaused
	}
}

// Contains reports whether user is already processed or queued.
func (o *BlockOperation) Contains(user string) bool {
	return slices.Contains(o.ProcessedUsers, user) || slices.Contains(o.PendingUsers, user)
}

// HasEntry reports whether entryID is one of the entries folded into this operation.
func (o *BlockOperation) HasEntry(entryID string) bool {
	return o.EntryID == entryID || slices.Contains(o.EntryIDs, entryID)
}

// Compatible reports whether a request with these settings can be merged.
func (o *BlockOperation) Compatible(blockType BlockType, includeThread bool) bool {
	return o.BlockType == blockType && o.IncludeThreadBlocking == includeThread
}

// Merge appends the users not yet seen and returns how many were added.
func (o *BlockOperation) Merge(entryID string, users []string) int {
	seen := make(map[string]struct{}, len(o.ProcessedUsers)+len(o.PendingUsers))
	for _, u := range o.ProcessedUsers {
		seen[u] = struct{}{}
	}
	for _, u := range o.PendingUsers {
		seen[u] = struct{}{}
	}

	added := 0
	for _, u := range users {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		o.PendingUsers = append(o.PendingUsers, u)
		added++
	}

	o.TotalUserCount += added
	if !o.HasEntry(entryID) {
		o.EntryIDs = append(o.EntryIDs, entryID)
	}
	return added
}

// NextUser returns the head of the pending queue.
func (o *BlockOperation) NextUser() (string, bool) {
	if len(o.PendingUsers) == 0 {
		return "", false
	}
	return o.PendingUsers[0], true
}

// MarkProcessed moves user from pending to processed and records the outcome.
// It reports false when the user was not pending.
func (o *BlockOperation) MarkProcessed(user string, outcome Outcome) bool {
	idx := slices.Index(o.PendingUsers, user)
	if idx < 0 {
		return false
	}

	o.PendingUsers = slices.Delete(o.PendingUsers, idx, idx+1)
	o.ProcessedUsers = append(o.ProcessedUsers, user)
	delete(o.RetryCounts, user)

	switch outcome {
	case OutcomeFailed:
		o.FailedUsers = append(o.FailedUsers, user)
	case OutcomeSkipped:
		o.SkippedUsers = append(o.SkippedUsers, user)
	}
	return true
}

// RecordFailure increments the retry counter of user and returns the new value.
func (o *BlockOperation) RecordFailure(user string) int {
	o.RetryCounts[user]++
	return o.RetryCounts[user]
}

// Touch updates the checkpoint timestamp.
func (o *BlockOperation) Touch(now time.Time) {
	o.Timestamp = now.UnixMilli()
}

// UpdatedAt returns the last checkpoint time.
func (o *BlockOperation) UpdatedAt() time.Time {
	return time.UnixMilli(o.Timestamp)
}

// IsStale reports whether the last checkpoint is older than window.
func (o *BlockOperation) IsStale(now time.Time, window time.Duration) bool {
	return now.Sub(o.UpdatedAt()) >= window
}

// IsDone reports whether nothing is left to process.
func (o *BlockOperation) IsDone() bool {
	return o.Status == StatusCompleted || len(o.PendingUsers) == 0
}

// Clone returns a deep copy safe to hand to other goroutines.
func (o *BlockOperation) Clone() *BlockOperation {
	if o == nil {
		return nil
	}
	c := *o
	c.EntryIDs = slices.Clone(o.EntryIDs)
	c.ProcessedUsers = slices.Clone(o.ProcessedUsers)
	c.PendingUsers = slices.Clone(o.PendingUsers)
	c.FailedUsers = slices.Clone(o.FailedUsers)
	c.SkippedUsers = slices.Clone(o.SkippedUsers)
	c.RetryCounts = make(map[string]int, len(o.RetryCounts))
	for k, v := range o.RetryCounts {
		c.RetryCounts[k] = v
	}
	return &c
}
