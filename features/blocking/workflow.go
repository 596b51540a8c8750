package blocking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FavoritesFetcher collects the deduplicated favoriters of an entry.
type FavoritesFetcher interface {
	FetchFavorites(ctx context.Context, entryID string) ([]string, error)
}

// UserBlocker issues a single block or mute request.
type UserBlocker interface {
	BlockUser(ctx context.Context, username string, blockType BlockType, includeThread bool) error
}

// Result is the outcome of a workflow command as reported to callers.
type Result struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	OperationID string `json:"operationId,omitempty"`
	Merged      bool   `json:"merged,omitempty"`
	AddedUsers  int    `json:"addedUsers,omitempty"`
}

// StatusReport is a side-effect free view of the current operation.
type StatusReport struct {
	Status                Status    `json:"status"`
	OperationID           string    `json:"operationId,omitempty"`
	EntryID               string    `json:"entryId,omitempty"`
	EntryIDs              []string  `json:"entryIds,omitempty"`
	BlockType             BlockType `json:"blockType,omitempty"`
	IncludeThreadBlocking bool      `json:"includeThreadBlocking"`
	ProcessedCount        int       `json:"processedCount"`
	TotalCount            int       `json:"totalCount"`
	PendingCount          int       `json:"pendingCount"`
	FailedCount           int       `json:"failedCount"`
	Running               bool      `json:"running"`
	UpdatedAt             time.Time `json:"updatedAt,omitzero"`
}

type Option func(*Workflow)

func WithNotifier(n Notifier) Option {
	return func(w *Workflow) { w.notifier = n }
}

func WithRecorder(r Recorder) Option {
	return func(w *Workflow) { w.recorder = r }
}

func WithHistory(h HistoryRecorder) Option {
	return func(w *Workflow) { w.history = h }
}

func WithKnownUsers(k KnownUsers) Option {
	return func(w *Workflow) { w.known = k }
}

func WithLogger(l zerolog.Logger) Option {
	return func(w *Workflow) { w.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// Workflow is the blocking state machine. It owns the current operation,
// runs at most one dispatcher loop and checkpoints after every user.
type Workflow struct {
	fetcher  FavoritesFetcher
	blocker  UserBlocker
	store    *StateStore
	notifier Notifier
	recorder Recorder
	history  HistoryRecorder
	known    KnownUsers
	log      zerolog.Logger
	now      func() time.Time
	settings Settings

	// startMu serializes start, merge, resume and reset.
	startMu sync.Mutex

	// mu guards everything below. Queue mutations and their checkpoint
	// happen under one hold of mu.
	mu            sync.Mutex
	op            *BlockOperation
	last          *BlockOperation
	running       bool
	loopSeq       int
	cancel        context.CancelFunc
	task          pond.Task
	pool          pond.Pool
	storeFailures int
	closed        bool
}

func NewWorkflow(fetcher FavoritesFetcher, blocker UserBlocker, kv KeyValueStore, settings Settings, opts ...Option) *Workflow {
	w := &Workflow{
		fetcher:  fetcher,
		blocker:  blocker,
		store:    NewStateStore(kv),
		notifier: NopNotifier{},
		recorder: nopRecorder{},
		log:      log.Logger,
		now:      time.Now,
		settings: settings.withDefaults(),
		pool:     pond.NewPool(1),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.log = w.log.With().Str("component", "blocking").Logger()
	return w
}

// StartBlocking starts a new operation for entryID, or merges the entry into
// the running one.
func (w *Workflow) StartBlocking(ctx context.Context, entryID string, blockType BlockType, includeThread bool) (Result, error) {
	if err := validateRequest(entryID, blockType); err != nil {
		return Result{Message: err.Error()}, err
	}

	w.startMu.Lock()
	defer w.startMu.Unlock()

	var prefetched []string
	if w.IsRunning() {
		added, users, err := w.merge(ctx, entryID, blockType, includeThread)
		switch {
		case err == nil:
			return Result{
				Success:     true,
				Merged:      true,
				AddedUsers:  added,
				OperationID: w.currentOperationID(),
				Message:     fmt.Sprintf("entry %s merged into the running operation, %d new users queued", entryID, added),
			}, nil
		case errors.Is(err, ErrNoActiveOperation):
			// the loop finished while the favorites were being collected
			prefetched = users
		default:
			return Result{Message: err.Error()}, err
		}
	}

	users := prefetched
	if users == nil {
		var err error
		if users, err = w.fetch(ctx, entryID); err != nil {
			return Result{Message: err.Error()}, err
		}
	}
	if len(users) == 0 {
		return Result{Message: ErrNoFavorites.Error()}, ErrNoFavorites
	}

	op := NewBlockOperation(entryID, blockType, includeThread, users, w.now())

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Result{Message: ErrWorkflowClosed.Error()}, ErrWorkflowClosed
	}

	if previous := w.op; previous != nil {
		w.log.Warn().
			Str("operation_id", previous.OperationID).
			Str("status", previous.Status.String()).
			Int("pending", len(previous.PendingUsers)).
			Msg("Replacing stored operation with a new one")
	}

	if err := w.store.Save(ctx, op); err != nil {
		w.mu.Unlock()
		w.log.Error().Err(err).Str("entry_id", entryID).Msg("Failed to persist new operation")
		return Result{Message: err.Error()}, err
	}

	w.op = op
	w.storeFailures = 0
	w.launchLocked()
	w.recordHistoryLocked(ctx)
	w.recorder.PendingUsers(len(op.PendingUsers))
	w.mu.Unlock()

	w.log.Info().
		Str("operation_id", op.OperationID).
		Str("entry_id", entryID).
		Str("block_type", blockType.String()).
		Bool("thread_blocking", includeThread).
		Int("users", op.TotalUserCount).
		Msg("Blocking operation started")

	return Result{
		Success:     true,
		OperationID: op.OperationID,
		AddedUsers:  op.TotalUserCount,
		Message:     fmt.Sprintf("blocking %d users", op.TotalUserCount),
	}, nil
}

// StopBlocking pauses the running loop and waits for it to exit. The stored
// record is kept so the operation can be resumed.
func (w *Workflow) StopBlocking(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		hasOp := w.op != nil
		w.mu.Unlock()
		if !hasOp {
			return ErrNoActiveOperation
		}
		return nil
	}
	cancel, task := w.cancel, w.task
	w.mu.Unlock()

	cancel()
	return waitTask(ctx, task)
}

// ForceStopBlocking halts the loop and irrecoverably clears the stored record.
func (w *Workflow) ForceStopBlocking(ctx context.Context) error {
	w.mu.Lock()
	op := w.op
	running, cancel, task := w.running, w.cancel, w.task
	w.op = nil

	clearErr := w.store.Clear(ctx)
	if op != nil {
		op.Status = StatusFailed
		w.last = op.Clone()
		w.recordHistory(ctx, op)
		w.recorder.OperationFinished(StatusFailed.String())
		w.recorder.PendingUsers(0)
	}
	w.mu.Unlock()

	if running {
		cancel()
		if err := waitTask(ctx, task); err != nil {
			return err
		}
	}

	if op != nil {
		w.notifier.OnAbort()
		w.log.Warn().
			Str("operation_id", op.OperationID).
			Int("processed", len(op.ProcessedUsers)).
			Int("pending", len(op.PendingUsers)).
			Msg("Blocking operation force-stopped")
	}

	if clearErr != nil {
		w.log.Error().Err(clearErr).Msg("Failed to clear stored operation")
		return clearErr
	}
	return nil
}

// ResumeBlocking moves a paused operation back to RUNNING.
func (w *Workflow) ResumeBlocking(ctx context.Context) (Result, error) {
	w.startMu.Lock()
	defer w.startMu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return Result{Message: ErrWorkflowClosed.Error()}, ErrWorkflowClosed
	}
	if w.running {
		return Result{Message: ErrOperationRunning.Error()}, ErrOperationRunning
	}

	op, err := w.currentOrStoredLocked(ctx)
	if err != nil {
		return Result{Message: err.Error()}, err
	}

	if op.IsDone() {
		w.finishClearedLocked(ctx, op)
		return Result{Success: true, OperationID: op.OperationID, Message: "operation was already complete"}, nil
	}

	if op.Status == StatusStuck || op.IsStale(w.now(), w.settings.StaleAfter) {
		w.op = op
		op.Status = StatusStuck
		return Result{OperationID: op.OperationID, Message: ErrStuckOperation.Error()}, ErrStuckOperation
	}

	w.op = op
	op.Status = StatusRunning
	w.storeFailures = 0
	_ = w.checkpointLocked(ctx)
	w.launchLocked()
	w.recordHistory(ctx, op)

	w.log.Info().
		Str("operation_id", op.OperationID).
		Int("pending", len(op.PendingUsers)).
		Msg("Blocking operation resumed")

	return Result{Success: true, OperationID: op.OperationID, Message: fmt.Sprintf("resumed with %d pending users", len(op.PendingUsers))}, nil
}

// ResetStuckState re-enters RUNNING for a stale or stuck operation, or clears
// it when nothing is left to do.
func (w *Workflow) ResetStuckState(ctx context.Context) (Result, error) {
	w.startMu.Lock()
	defer w.startMu.Unlock()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Result{Message: ErrWorkflowClosed.Error()}, ErrWorkflowClosed
	}
	if w.running {
		w.mu.Unlock()
		return Result{Message: ErrOperationRunning.Error()}, ErrOperationRunning
	}

	op, err := w.currentOrStoredLocked(ctx)
	if err != nil {
		w.mu.Unlock()
		return Result{Message: err.Error()}, err
	}

	if op.IsDone() {
		w.finishClearedLocked(ctx, op)
		w.mu.Unlock()
		return Result{Success: true, OperationID: op.OperationID, Message: "operation was already complete, cleared"}, nil
	}

	w.op = op
	entries := append([]string(nil), op.EntryIDs...)
	w.mu.Unlock()

	fresh := map[string][]string{}
	if w.settings.RevalidateOnReset {
		for _, entryID := range entries {
			users, err := w.fetch(ctx, entryID)
			if err != nil {
				w.log.Warn().Err(err).Str("entry_id", entryID).Msg("Revalidation fetch failed, resuming with stored queue")
				continue
			}
			fresh[entryID] = users
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return Result{Message: ErrWorkflowClosed.Error()}, ErrWorkflowClosed
	}
	if w.op == nil || w.op.OperationID != op.OperationID {
		return Result{Message: ErrNoActiveOperation.Error()}, ErrNoActiveOperation
	}

	added := 0
	for _, entryID := range entries {
		added += op.Merge(entryID, fresh[entryID])
	}

	op.Status = StatusRunning
	w.storeFailures = 0
	_ = w.checkpointLocked(ctx)
	w.launchLocked()
	w.recordHistory(ctx, op)

	w.log.Info().
		Str("operation_id", op.OperationID).
		Int("pending", len(op.PendingUsers)).
		Int("added", added).
		Msg("Stuck operation reset")

	return Result{
		Success:     true,
		OperationID: op.OperationID,
		AddedUsers:  added,
		Message:     fmt.Sprintf("resumed with %d pending users", len(op.PendingUsers)),
	}, nil
}

// GetStatus reports the current operation without side effects.
func (w *Workflow) GetStatus() StatusReport {
	w.mu.Lock()
	defer w.mu.Unlock()

	op := w.op
	if op == nil {
		op = w.last
	}
	if op == nil {
		return StatusReport{Status: StatusIdle}
	}

	return StatusReport{
		Status:                op.Status,
		OperationID:           op.OperationID,
		EntryID:               op.EntryID,
		EntryIDs:              append([]string(nil), op.EntryIDs...),
		BlockType:             op.BlockType,
		IncludeThreadBlocking: op.IncludeThreadBlocking,
		ProcessedCount:        len(op.ProcessedUsers),
		TotalCount:            op.TotalUserCount,
		PendingCount:          len(op.PendingUsers),
		FailedCount:           len(op.FailedUsers),
		Running:               w.running,
		UpdatedAt:             op.UpdatedAt(),
	}
}

// Snapshot returns a copy of the in-memory operation, or of the last finished one.
func (w *Workflow) Snapshot() *BlockOperation {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.op != nil {
		return w.op.Clone()
	}
	return w.last.Clone()
}

// IsRunning reports whether a dispatcher loop is active.
func (w *Workflow) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Wait blocks until the current loop, if any, exits.
func (w *Workflow) Wait() {
	w.mu.Lock()
	task := w.task
	w.mu.Unlock()

	if task != nil {
		_ = task.Wait()
	}
}

// Close pauses the running loop and stops the worker pool. Later calls are
// no-ops.
func (w *Workflow) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.pool.StopAndWait()
}

func (w *Workflow) currentOperationID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.op == nil {
		return ""
	}
	return w.op.OperationID
}

func (w *Workflow) currentOrStoredLocked(ctx context.Context) (*BlockOperation, error) {
	if w.op != nil {
		return w.op, nil
	}

	op, err := w.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, ErrNoStoredOperation
	}
	return op, nil
}

// finishClearedLocked drops an operation that has nothing left to process.
func (w *Workflow) finishClearedLocked(ctx context.Context, op *BlockOperation) {
	op.Status = StatusCompleted
	if err := w.store.Clear(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Failed to clear completed operation")
	}
	w.op = nil
	w.last = op.Clone()
	w.recordHistory(ctx, op)
}

func (w *Workflow) fetch(ctx context.Context, entryID string) ([]string, error) {
	users, err := w.fetcher.FetchFavorites(ctx, entryID)
	if err != nil {
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			err = &FetchError{EntryID: entryID, Err: err}
		}
		w.log.Error().Err(err).Str("entry_id", entryID).Msg("Failed to fetch favorites")
		return nil, err
	}
	return users, nil
}

func (w *Workflow) recordHistoryLocked(ctx context.Context) {
	if w.op != nil {
		w.recordHistory(ctx, w.op)
	}
}

func (w *Workflow) recordHistory(ctx context.Context, op *BlockOperation) {
	if w.history == nil || op == nil {
		return
	}
	if err := w.history.Record(context.WithoutCancel(ctx), op.Clone()); err != nil {
		w.log.Warn().Err(err).Str("operation_id", op.OperationID).Msg("Failed to record operation history")
	}
}

func validateRequest(entryID string, blockType BlockType) error {
	if entryID == "" {
		return ErrEmptyEntryID
	}
	if !blockType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidBlockType, blockType)
	}
	return nil
}

func waitTask(ctx context.Context, task pond.Task) error {
	if task == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		_ = task.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
