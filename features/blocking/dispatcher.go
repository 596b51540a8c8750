package blocking

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("eksiblock/blocking")

// launchLocked submits the dispatcher loop for the current operation.
func (w *Workflow) launchLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	w.loopSeq++
	seq := w.loopSeq
	operationID := w.op.OperationID

	w.op.Status = StatusRunning
	w.running = true
	w.cancel = cancel
	w.task = w.pool.Submit(func() {
		w.run(ctx, seq, operationID)
	})
}

// run processes the pending queue head first until it is empty, the loop is
// cancelled, or the operation is replaced.
func (w *Workflow) run(ctx context.Context, seq int, operationID string) {
	limiter := newThrottle(w.settings.RequestDelay)

	for {
		w.mu.Lock()
		op := w.op
		if op == nil || op.OperationID != operationID {
			w.releaseLocked(seq)
			w.mu.Unlock()
			return
		}
		if ctx.Err() != nil {
			w.pauseLocked(ctx)
			w.releaseLocked(seq)
			w.mu.Unlock()
			return
		}
		if w.escalateLocked() {
			w.releaseLocked(seq)
			w.mu.Unlock()
			return
		}

		user, ok := op.NextUser()
		if !ok {
			w.completeLocked(ctx)
			w.releaseLocked(seq)
			w.mu.Unlock()
			return
		}
		blockType, includeThread := op.BlockType, op.IncludeThreadBlocking
		w.mu.Unlock()

		outcome := w.processUser(ctx, limiter, operationID, user, blockType, includeThread)
		if outcome == OutcomeInterrupted {
			continue
		}

		w.mu.Lock()
		w.recordOutcomeLocked(ctx, operationID, user, outcome)
		w.mu.Unlock()
	}
}

// releaseLocked marks the loop identified by seq as gone, unless a newer
// loop has been launched since.
func (w *Workflow) releaseLocked(seq int) {
	if w.loopSeq != seq {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.running = false
	w.cancel = nil
}

// processUser blocks a single user, retrying with exponential backoff until
// the per-user retry budget stored in the operation is spent.
func (w *Workflow) processUser(ctx context.Context, limiter *throttle, operationID, user string, blockType BlockType, includeThread bool) Outcome {
	ctx, span := tracer.Start(ctx, "blocking.process_user", trace.WithAttributes(
		attribute.String("blocking.operation_id", operationID),
		attribute.String("blocking.username", user),
		attribute.String("blocking.block_type", blockType.String()),
	))
	defer span.End()

	if w.settings.SkipKnownUsers && w.known != nil && w.known.Has(user, blockType) {
		w.log.Debug().Str("username", user).Msg("User already handled earlier, skipping")
		span.SetAttributes(attribute.String("blocking.outcome", string(OutcomeSkipped)))
		return OutcomeSkipped
	}

	if err := limiter.Wait(ctx); err != nil {
		return OutcomeInterrupted
	}
	defer limiter.Done()

	b := w.newBackOff()
	for attempt := 1; ; attempt++ {
		err := w.attempt(ctx, user, blockType, includeThread)
		if err == nil {
			if w.known != nil {
				if err := w.known.Add(user, blockType); err != nil {
					w.log.Warn().Err(err).Str("username", user).Msg("Failed to remember blocked user")
				}
			}
			span.SetAttributes(attribute.String("blocking.outcome", string(OutcomeBlocked)))
			return OutcomeBlocked
		}

		reqErr := &BlockRequestError{Username: user, Attempt: attempt, Err: err}
		span.RecordError(reqErr)

		w.mu.Lock()
		if w.op == nil || w.op.OperationID != operationID {
			w.mu.Unlock()
			return OutcomeInterrupted
		}
		failures := w.op.RecordFailure(user)
		_ = w.checkpointLocked(ctx)
		w.mu.Unlock()

		w.recorder.RetryAttempted(blockType.String())
		w.log.Warn().
			Err(reqErr).
			Str("username", user).
			Int("failures", failures).
			Int("max_retries", w.settings.MaxRetries).
			Msg("Block request failed")

		if failures > w.settings.MaxRetries {
			span.SetStatus(codes.Error, "retries exhausted")
			w.notifier.OnError(reqErr.Error())
			return OutcomeFailed
		}

		if !sleep(ctx, b.NextBackOff()) {
			return OutcomeInterrupted
		}
	}
}

// attempt runs one request. Cancellation of ctx does not abort a request in
// flight, only the request timeout does.
func (w *Workflow) attempt(ctx context.Context, user string, blockType BlockType, includeThread bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("block request panicked: %v", r)
		}
	}()

	callCtx := context.WithoutCancel(ctx)
	if w.settings.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, w.settings.RequestTimeout)
		defer cancel()
	}
	return w.blocker.BlockUser(callCtx, user, blockType, includeThread)
}

func (w *Workflow) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.settings.RetryDelay
	b.MaxInterval = w.settings.MaxRetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.Reset()
	return b
}

func (w *Workflow) recordOutcomeLocked(ctx context.Context, operationID, user string, outcome Outcome) {
	op := w.op
	if op == nil || op.OperationID != operationID {
		return
	}

	if !op.MarkProcessed(user, outcome) {
		w.log.Warn().Str("username", user).Msg("Processed user was no longer pending")
		return
	}
	_ = w.checkpointLocked(ctx)

	w.recorder.UserProcessed(op.BlockType.String(), string(outcome))
	w.recorder.PendingUsers(len(op.PendingUsers))
	w.notifier.OnProgress(Progress{
		OperationID:  op.OperationID,
		CurrentCount: len(op.ProcessedUsers),
		TotalCount:   op.TotalUserCount,
	})

	w.log.Debug().
		Str("username", user).
		Str("outcome", string(outcome)).
		Int("processed", len(op.ProcessedUsers)).
		Int("total", op.TotalUserCount).
		Msg("User processed")
}

// checkpointLocked persists the current operation. Failures are counted and
// reported but never stop the loop on their own.
func (w *Workflow) checkpointLocked(ctx context.Context) error {
	w.op.Touch(w.now())
	if err := w.store.Save(context.WithoutCancel(ctx), w.op); err != nil {
		w.storeFailures++
		w.recorder.CheckpointFailed()
		w.notifier.OnError(err.Error())
		w.log.Error().Err(err).Int("consecutive_failures", w.storeFailures).Msg("Checkpoint failed")
		return err
	}
	w.storeFailures = 0
	return nil
}

// escalateLocked moves the operation to STUCK after too many consecutive
// checkpoint failures.
func (w *Workflow) escalateLocked() bool {
	if w.settings.MaxStoreFailures <= 0 || w.storeFailures < w.settings.MaxStoreFailures {
		return false
	}

	w.op.Status = StatusStuck
	w.recordHistory(context.Background(), w.op)
	w.recorder.OperationFinished(StatusStuck.String())
	w.notifier.OnError(fmt.Sprintf("operation store failed %d times in a row, operation is stuck", w.storeFailures))
	w.log.Error().
		Str("operation_id", w.op.OperationID).
		Int("consecutive_failures", w.storeFailures).
		Msg("Operation marked as stuck")
	return true
}

func (w *Workflow) pauseLocked(ctx context.Context) {
	op := w.op
	if op.Status == StatusRunning {
		op.Status = StatusPaused
	}
	_ = w.checkpointLocked(ctx)
	w.recordHistory(ctx, op)
	w.recorder.OperationFinished(op.Status.String())
	w.notifier.OnProgress(Progress{
		OperationID:  op.OperationID,
		CurrentCount: len(op.ProcessedUsers),
		TotalCount:   op.TotalUserCount,
		IsAborted:    true,
	})

	w.log.Info().
		Str("operation_id", op.OperationID).
		Int("processed", len(op.ProcessedUsers)).
		Int("pending", len(op.PendingUsers)).
		Msg("Blocking operation paused")
}

func (w *Workflow) completeLocked(ctx context.Context) {
	op := w.op
	op.Status = StatusCompleted
	op.Touch(w.now())

	if err := w.store.Clear(context.WithoutCancel(ctx)); err != nil {
		w.notifier.OnError(err.Error())
		w.log.Error().Err(err).Msg("Failed to clear completed operation")
	}

	w.op = nil
	w.last = op.Clone()
	w.recordHistory(ctx, op)
	w.recorder.OperationFinished(StatusCompleted.String())
	w.recorder.PendingUsers(0)

	w.notifier.OnProgress(Progress{
		OperationID:  op.OperationID,
		CurrentCount: len(op.ProcessedUsers),
		TotalCount:   op.TotalUserCount,
		IsCompleted:  true,
	})
	w.notifier.OnComplete(op.TotalUserCount)

	w.log.Info().
		Str("operation_id", op.OperationID).
		Int("total", op.TotalUserCount).
		Int("failed", len(op.FailedUsers)).
		Int("skipped", len(op.SkippedUsers)).
		Msg("Blocking operation completed")
}

// throttle spaces block requests by a fixed delay counted from the end of the
// previous user, so a slow request still leaves a full gap before the next.
type throttle struct {
	every   rate.Limit
	limiter *rate.Limiter
}

func newThrottle(delay time.Duration) *throttle {
	every := rate.Every(delay)
	return &throttle{every: every, limiter: rate.NewLimiter(every, 1)}
}

func (t *throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// Done re-arms the limiter with an empty bucket.
func (t *throttle) Done() {
	t.limiter = rate.NewLimiter(t.every, 1)
	t.limiter.AllowN(time.Now(), 1)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
