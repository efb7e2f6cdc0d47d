package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertHistory appends one immutable audit row. The row identifier and
// timestamp are assigned here when unset.
func (s *Store) InsertHistory(ctx context.Context, rec HistoryRecord) error {
	if rec.QueueID == "" {
		return fmt.Errorf("%w: queue id required", ErrValidation)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	metadataVal, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO queue_history (
            id, queue_id, action, previous_status, new_status,
            performed_by_id, reason, metadata_json, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.QueueID,
		rec.Action,
		nullableString(string(rec.PreviousStatus)),
		rec.NewStatus,
		rec.PerformedByID,
		nullableString(rec.Reason),
		metadataVal,
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// HistoryForEntry returns the audit trail of an entry, oldest first.
func (s *Store) HistoryForEntry(ctx context.Context, queueID string) ([]*HistoryRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, queue_id, action, previous_status, new_status, performed_by_id, reason, metadata_json, created_at
         FROM queue_history WHERE queue_id = ? ORDER BY created_at, id`,
		queueID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []*HistoryRecord
	for rows.Next() {
		var (
			rec         HistoryRecord
			prevStatus  sql.NullString
			reason      sql.NullString
			metadataRaw sql.NullString
			createdRaw  string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.QueueID,
			&rec.Action,
			&prevStatus,
			&rec.NewStatus,
			&rec.PerformedByID,
			&reason,
			&metadataRaw,
			&createdRaw,
		); err != nil {
			return nil, err
		}
		rec.PreviousStatus = Status(prevStatus.String)
		rec.Reason = reason.String
		if metadataRaw.Valid && metadataRaw.String != "" {
			meta := make(map[string]any)
			if err := json.Unmarshal([]byte(metadataRaw.String), &meta); err != nil {
				return nil, fmt.Errorf("history %s: decode metadata: %w", rec.ID, err)
			}
			rec.Metadata = meta
		}
		if rec.CreatedAt, err = parseTimeString(createdRaw); err != nil {
			return nil, fmt.Errorf("history %s: parse created_at: %w", rec.ID, err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// CountHistory returns the number of audit rows recorded for an entry.
func (s *Store) CountHistory(ctx context.Context, queueID string) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM queue_history WHERE queue_id = ?`, queueID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}
