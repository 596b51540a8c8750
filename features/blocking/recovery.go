package blocking

import (
	"context"
)

// CheckAndResumeBlocking is run at startup. A stored operation that is not
// complete and was checkpointed within the staleness window is resumed. A
// stale one is held in memory as STUCK until ResetStuckState is called, and a
// finished one is cleared from the store.
// Calling it again while a loop is active is a no-op.
func (w *Workflow) CheckAndResumeBlocking(ctx context.Context) error {
	w.startMu.Lock()
	defer w.startMu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWorkflowClosed
	}
	if w.running {
		return nil
	}

	op, err := w.store.Load(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to load stored operation")
		return err
	}
	if op == nil {
		w.log.Debug().Msg("No stored operation to resume")
		return nil
	}

	logger := w.log.With().
		Str("operation_id", op.OperationID).
		Str("entry_id", op.EntryID).
		Str("stored_status", op.Status.String()).
		Int("pending", len(op.PendingUsers)).
		Logger()

	if op.IsDone() {
		logger.Info().Msg("Stored operation has nothing left to process, clearing it")
		w.finishClearedLocked(ctx, op)
		return nil
	}

	w.op = op
	if op.IsStale(w.now(), w.settings.StaleAfter) {
		op.Status = StatusStuck
		logger.Warn().
			Time("updated_at", op.UpdatedAt()).
			Dur("stale_after", w.settings.StaleAfter).
			Msg("Stored operation is stale, waiting for a reset")
		return nil
	}

	w.storeFailures = 0
	op.Status = StatusRunning
	_ = w.checkpointLocked(ctx)
	w.launchLocked()
	w.recordHistory(ctx, op)

	logger.Info().Msg("Resuming stored operation")
	return nil
}

// DetectStuck flags an operation that claims to be running without a live
// loop, or whose running loop has not checkpointed within the staleness
// window. A flagged running loop is cancelled and keeps the STUCK status.
func (w *Workflow) DetectStuck() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	op := w.op
	if op == nil || op.Status == StatusStuck {
		return false
	}

	switch {
	case op.Status == StatusRunning && !w.running:
	case w.running && op.IsStale(w.now(), w.settings.StaleAfter):
		if w.cancel != nil {
			w.cancel()
		}
	default:
		return false
	}

	op.Status = StatusStuck
	w.recorder.OperationFinished(StatusStuck.String())
	w.log.Warn().
		Str("operation_id", op.OperationID).
		Time("updated_at", op.UpdatedAt()).
		Bool("loop_running", w.running).
		Msg("Operation detected as stuck")
	return true
}
