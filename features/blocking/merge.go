package blocking

import (
	"context"
)

// AddEntryToCurrentOperation folds the favoriters of entryID into the running
// operation. It reports false with a *MergeRejectedError when the settings
// differ or the entry was already merged.
func (w *Workflow) AddEntryToCurrentOperation(ctx context.Context, entryID string, blockType BlockType, includeThread bool) (bool, error) {
	if err := validateRequest(entryID, blockType); err != nil {
		return false, err
	}

	w.startMu.Lock()
	defer w.startMu.Unlock()

	if _, _, err := w.merge(ctx, entryID, blockType, includeThread); err != nil {
		return false, err
	}
	return true, nil
}

// merge must be called with startMu held. Favorites are fetched without
// holding mu so the dispatcher keeps running during the fetch. On
// ErrNoActiveOperation the fetched users, if any, are returned so the caller
// can start a fresh operation with them.
func (w *Workflow) merge(ctx context.Context, entryID string, blockType BlockType, includeThread bool) (int, []string, error) {
	w.mu.Lock()
	op := w.op
	if op == nil || !w.running {
		w.mu.Unlock()
		return 0, nil, ErrNoActiveOperation
	}
	if err := w.checkMergeLocked(op, entryID, blockType, includeThread); err != nil {
		w.mu.Unlock()
		return 0, nil, err
	}
	operationID := op.OperationID
	w.mu.Unlock()

	users, err := w.fetch(ctx, entryID)
	if err != nil {
		w.recorder.MergeResolved("fetch_failed")
		return 0, nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	op = w.op
	if op == nil || op.OperationID != operationID || !w.running {
		return 0, users, ErrNoActiveOperation
	}
	if err := w.checkMergeLocked(op, entryID, blockType, includeThread); err != nil {
		return 0, nil, err
	}

	added := op.Merge(entryID, users)
	_ = w.checkpointLocked(ctx)
	w.recordHistory(ctx, op)
	w.recorder.MergeResolved("merged")
	w.recorder.PendingUsers(len(op.PendingUsers))

	w.log.Info().
		Str("operation_id", op.OperationID).
		Str("entry_id", entryID).
		Int("fetched", len(users)).
		Int("added", added).
		Int("total", op.TotalUserCount).
		Msg("Entry merged into running operation")

	return added, users, nil
}

func (w *Workflow) checkMergeLocked(op *BlockOperation, entryID string, blockType BlockType, includeThread bool) error {
	var reason error
	switch {
	case !op.Compatible(blockType, includeThread):
		reason = ErrIncompatibleSettings
		w.recorder.MergeResolved("incompatible")
	case op.HasEntry(entryID):
		reason = ErrDuplicateEntry
		w.recorder.MergeResolved("duplicate")
	default:
		return nil
	}

	w.log.Warn().
		Str("operation_id", op.OperationID).
		Str("entry_id", entryID).
		Str("running_block_type", op.BlockType.String()).
		Str("requested_block_type", blockType.String()).
		Err(reason).
		Msg("Merge rejected")
	return &MergeRejectedError{EntryID: entryID, Reason: reason}
}
