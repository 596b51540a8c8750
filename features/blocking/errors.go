package blocking

import (
	"errors"
	"fmt"
)

var (
	ErrOperationRunning     = errors.New("a blocking operation is already running")
	ErrNoActiveOperation    = errors.New("no active blocking operation")
	ErrNoStoredOperation    = errors.New("no stored blocking operation")
	ErrIncompatibleSettings = errors.New("incompatible settings with the running operation")
	ErrDuplicateEntry       = errors.New("entry is already part of the running operation")
	ErrStuckOperation       = errors.New("operation is stale and needs an explicit reset")
	ErrEmptyEntryID         = errors.New("entry id is empty")
	ErrNoFavorites          = errors.New("entry has no favoriters")
	ErrWorkflowClosed       = errors.New("blocking workflow is closed")
)

// FetchError reports that the favoriter listing of an entry could not be collected.
type FetchError struct {
	EntryID string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching favorites of entry %s: %v", e.EntryID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// BlockRequestError is a failed block/mute call for a single user.
type BlockRequestError struct {
	Username string
	Attempt  int
	Err      error
}

func (e *BlockRequestError) Error() string {
	return fmt.Sprintf("block request for %s failed (attempt %d): %v", e.Username, e.Attempt, e.Err)
}

func (e *BlockRequestError) Unwrap() error { return e.Err }

// StorageError wraps a failed read or write of the operation record.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("operation store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// MergeRejectedError explains why an entry could not be folded into the
// running operation. Reason is ErrIncompatibleSettings or ErrDuplicateEntry.
type MergeRejectedError struct {
	EntryID string
	Reason  error
}

func (e *MergeRejectedError) Error() string {
	return fmt.Sprintf("merge of entry %s rejected: %v", e.EntryID, e.Reason)
}

func (e *MergeRejectedError) Unwrap() error { return e.Reason }
