package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Transition reports the outcome of a successful state change.
type Transition struct {
	Entry *Entry
	From  Status
	To    Status
}

// Assign moves a pending entry to ASSIGNED and records the validator. The
// update is conditional on the version read inside the transaction, so two
// concurrent assignments resolve to exactly one winner.
func (s *Store) Assign(ctx context.Context, id, validatorID string) (*Transition, error) {
	if strings.TrimSpace(validatorID) == "" {
		return nil, fmt.Errorf("%w: validator id required", ErrValidation)
	}

	now := time.Now().UTC()
	var updated *Entry
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getEntryTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			return fmt.Errorf("%w: entry %s is %s, expected %s", ErrInvalidTransition, id, current.Status, StatusPending)
		}

		res, err := tx.ExecContext(
			ctx,
			`UPDATE queue_entries
             SET assigned_to_id = ?, assigned_at = ?, status = ?, version = version + 1, updated_at = ?
             WHERE id = ? AND status = ? AND version = ?`,
			validatorID,
			formatTime(now),
			StatusAssigned,
			formatTime(now),
			id,
			StatusPending,
			current.Version,
		)
		if err != nil {
			return fmt.Errorf("assign entry: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: entry %s", ErrConflict, id)
		}

		updated, err = getEntryTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Transition{Entry: updated, From: StatusPending, To: StatusAssigned}, nil
}

// UpdateStatus applies a status transition, maintaining the set-once timestamp
// bookkeeping: startedAt on first entry into IN_PROGRESS, completedAt and
// actualDuration on first entry into COMPLETED.
func (s *Store) UpdateStatus(ctx context.Context, id string, newStatus Status) (*Transition, error) {
	if _, ok := ParseStatus(string(newStatus)); !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
	}

	now := time.Now().UTC()
	var (
		updated *Entry
		from    Status
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getEntryTx(ctx, tx, id)
		if err != nil {
			return err
		}
		from = current.Status
		if !CanTransition(current.Status, newStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, newStatus)
		}

		sets := []string{"status = ?", "version = version + 1", "updated_at = ?"}
		args := []any{newStatus, formatTime(now)}

		if newStatus == StatusInProgress && current.StartedAt == nil {
			sets = append(sets, "started_at = ?")
			args = append(args, formatTime(now))
		}
		if newStatus == StatusCompleted && current.CompletedAt == nil {
			sets = append(sets, "completed_at = ?")
			args = append(args, formatTime(now))
			if current.StartedAt != nil {
				minutes := int(math.Round(now.Sub(*current.StartedAt).Minutes()))
				sets = append(sets, "actual_minutes = ?")
				args = append(args, minutes)
			}
		}

		args = append(args, id, current.Version)
		res, err := tx.ExecContext(
			ctx,
			`UPDATE queue_entries SET `+strings.Join(sets, ", ")+` WHERE id = ? AND version = ?`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: entry %s", ErrConflict, id)
		}

		updated, err = getEntryTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Transition{Entry: updated, From: from, To: newStatus}, nil
}

func getEntryTx(ctx context.Context, tx *sql.Tx, id string) (*Entry, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: queue entry %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// CountActiveForValidator counts entries assigned to a validator that are still
// in flight (ASSIGNED or IN_PROGRESS). Used by the workload-balanced strategy.
func (s *Store) CountActiveForValidator(ctx context.Context, validatorID string) (int, error) {
	var count int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM queue_entries WHERE assigned_to_id = ? AND status IN (?, ?)`,
		validatorID,
		StatusAssigned,
		StatusInProgress,
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count active for validator: %w", err)
	}
	return count, nil
}
