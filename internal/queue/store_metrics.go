package queue

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"
)

// Metrics computes queue rollups on demand. Counts are exact; the average
// processing time covers completed entries with a recorded duration and is 0
// when there are none. No caching happens here, so large tables pay the full
// aggregate cost per call.
func (s *Store) Metrics(ctx context.Context) (Metrics, error) {
	var m Metrics

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_entries GROUP BY status`)
	if err != nil {
		return m, fmt.Errorf("queue metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return m, err
		}
		switch status {
		case StatusPending:
			m.TotalPending = count
		case StatusAssigned:
			m.TotalAssigned = count
		case StatusInProgress:
			m.TotalInProgress = count
		case StatusCompleted:
			m.TotalCompleted = count
		}
	}
	if err := rows.Err(); err != nil {
		return m, err
	}
	m.TotalActive = m.TotalPending + m.TotalAssigned + m.TotalInProgress

	var avg sql.NullFloat64
	row := s.db.QueryRowContext(
		ctx,
		`SELECT AVG(actual_minutes) FROM queue_entries WHERE status = ? AND actual_minutes IS NOT NULL`,
		StatusCompleted,
	)
	if err := row.Scan(&avg); err != nil {
		return m, fmt.Errorf("average processing time: %w", err)
	}
	if avg.Valid {
		m.AvgProcessingMin = math.Round(avg.Float64)
	}

	active := []any{StatusPending, StatusAssigned, StatusInProgress}
	args := append(active, formatTime(time.Now().UTC()))
	row = s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM queue_entries WHERE status IN (`+makePlaceholders(len(active))+`) AND due_date < ?`,
		args...,
	)
	if err := row.Scan(&m.OverdueCount); err != nil {
		return m, fmt.Errorf("overdue count: %w", err)
	}

	return m, nil
}
