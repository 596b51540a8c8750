package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"eksiblock/features/blocking"

	"github.com/rs/zerolog/log"
)

var ErrOperationNotFound = errors.New("operation not found in history")

// Record is one row of the operation history.
type Record struct {
	OperationID    string             `json:"operationId"`
	EntryID        string             `json:"entryId"`
	EntryIDs       []string           `json:"entryIds"`
	BlockType      blocking.BlockType `json:"blockType"`
	IncludeThread  bool               `json:"includeThreadBlocking"`
	Status         blocking.Status    `json:"status"`
	TotalUsers     int                `json:"totalUsers"`
	ProcessedUsers int                `json:"processedUsers"`
	FailedUsers    int                `json:"failedUsers"`
	SkippedUsers   int                `json:"skippedUsers"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// ListOptions filters List. Zero values mean no filter.
type ListOptions struct {
	Status blocking.Status
	Limit  int
}

// SQLiteRepository stores operation snapshots in sqlite.
type SQLiteRepository struct {
	db        *sql.DB
	writeLock sync.Mutex
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record upserts the snapshot of op keyed by its operation id.
func (r *SQLiteRepository) Record(ctx context.Context, op *blocking.BlockOperation) error {
	if op == nil {
		return nil
	}

	created := time.UnixMilli(op.CreatedAt)
	if op.CreatedAt == 0 {
		created = op.UpdatedAt()
	}

	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO block_operations (
			operation_id, entry_id, entry_ids, block_type, include_thread, status,
			total_users, processed_users, failed_users, skipped_users, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(operation_id) DO UPDATE SET
			entry_ids = excluded.entry_ids,
			status = excluded.status,
			total_users = excluded.total_users,
			processed_users = excluded.processed_users,
			failed_users = excluded.failed_users,
			skipped_users = excluded.skipped_users,
			updated_at = excluded.updated_at`,
		op.OperationID,
		op.EntryID,
		strings.Join(op.EntryIDs, ","),
		op.BlockType.String(),
		op.IncludeThreadBlocking,
		op.Status.String(),
		op.TotalUserCount,
		len(op.ProcessedUsers),
		len(op.FailedUsers),
		len(op.SkippedUsers),
		created.UTC(),
		op.UpdatedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record operation %s: %w", op.OperationID, err)
	}

	log.Trace().
		Str("operation_id", op.OperationID).
		Str("status", op.Status.String()).
		Msg("Operation history recorded")
	return nil
}

// List returns the most recently updated operations first.
func (r *SQLiteRepository) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	query := `SELECT operation_id, entry_id, entry_ids, block_type, include_thread, status,
		total_users, processed_users, failed_users, skipped_users, created_at, updated_at
		FROM block_operations`
	var args []any

	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, opts.Status.String())
	}
	query += ` ORDER BY updated_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation history: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return records, nil
}

// GetByID returns a single operation, or ErrOperationNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, operationID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT operation_id, entry_id, entry_ids, block_type, include_thread, status,
		total_users, processed_users, failed_users, skipped_users, created_at, updated_at
		FROM block_operations WHERE operation_id = ?`, operationID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOperationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec       Record
		entryIDs  string
		blockType string
		status    string
	)

	err := s.Scan(
		&rec.OperationID, &rec.EntryID, &entryIDs, &blockType, &rec.IncludeThread, &status,
		&rec.TotalUsers, &rec.ProcessedUsers, &rec.FailedUsers, &rec.SkippedUsers,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("failed to scan operation history row: %w", err)
	}

	rec.BlockType = blocking.BlockType(blockType)
	rec.Status = blocking.Status(status)
	rec.EntryIDs = []string{}
	if entryIDs != "" {
		rec.EntryIDs = strings.Split(entryIDs, ",")
	}
	return rec, nil
}
