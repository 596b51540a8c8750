package blocking

import (
	"context"
	"encoding/json"
)

// StateKey is the fixed storage key of the current operation record.
const StateKey = "eksiBlockerState"

// KeyValueStore is the persistent storage area the workflow checkpoints into.
type KeyValueStore interface {
	GetItem(ctx context.Context, key string) (data []byte, found bool, err error)
	SetItem(ctx context.Context, key string, value []byte) error
	RemoveItem(ctx context.Context, key string) error
}

// StateStore reads and writes the single BlockerState record.
type StateStore struct {
	kv  KeyValueStore
	key string
}

func NewStateStore(kv KeyValueStore) *StateStore {
	return &StateStore{kv: kv, key: StateKey}
}

// Load returns the stored operation, or nil when there is none.
func (s *StateStore) Load(ctx context.Context) (*BlockOperation, error) {
	data, found, err := s.kv.GetItem(ctx, s.key)
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	if !found || len(data) == 0 {
		return nil, nil
	}

	op := &BlockOperation{}
	if err := json.Unmarshal(data, op); err != nil {
		return nil, &StorageError{Op: "decode", Err: err}
	}
	if op.EntryID == "" {
		return nil, &StorageError{Op: "decode", Err: ErrEmptyEntryID}
	}

	op.Normalize()
	return op, nil
}

// Save replaces the stored record with op.
func (s *StateStore) Save(ctx context.Context, op *BlockOperation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return &StorageError{Op: "encode", Err: err}
	}
	if err := s.kv.SetItem(ctx, s.key, data); err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	return nil
}

// Clear removes the stored record.
func (s *StateStore) Clear(ctx context.Context) error {
	if err := s.kv.RemoveItem(ctx, s.key); err != nil {
		return &StorageError{Op: "remove", Err: err}
	}
	return nil
}
