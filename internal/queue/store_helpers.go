package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const entryColumns = "id, product_id, requested_by_id, assigned_to_id, category, priority, status, estimated_minutes, actual_minutes, notes, metadata_json, version, created_at, updated_at, assigned_at, started_at, completed_at, due_date"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id            string
		productID     string
		requestedBy   string
		assignedTo    sql.NullString
		category      string
		priorityStr   string
		statusStr     string
		estimated     int
		actual        sql.NullInt64
		notes         sql.NullString
		metadataRaw   sql.NullString
		version       int64
		createdRaw    string
		updatedRaw    string
		assignedAtRaw sql.NullString
		startedRaw    sql.NullString
		completedRaw  sql.NullString
		dueRaw        string
	)

	if err := scanner.Scan(
		&id,
		&productID,
		&requestedBy,
		&assignedTo,
		&category,
		&priorityStr,
		&statusStr,
		&estimated,
		&actual,
		&notes,
		&metadataRaw,
		&version,
		&createdRaw,
		&updatedRaw,
		&assignedAtRaw,
		&startedRaw,
		&completedRaw,
		&dueRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:               id,
		ProductID:        productID,
		RequestedByID:    requestedBy,
		AssignedToID:     assignedTo.String,
		Category:         category,
		Priority:         Priority(priorityStr),
		Status:           Status(statusStr),
		EstimatedMinutes: estimated,
		Notes:            notes.String,
		Version:          version,
	}
	if actual.Valid {
		minutes := int(actual.Int64)
		entry.ActualMinutes = &minutes
	}
	if metadataRaw.Valid && metadataRaw.String != "" {
		meta := make(map[string]any)
		if err := json.Unmarshal([]byte(metadataRaw.String), &meta); err != nil {
			return nil, fmt.Errorf("entry %s: decode metadata: %w", id, err)
		}
		entry.Metadata = meta
	}

	var err error
	if entry.CreatedAt, err = parseTimeString(createdRaw); err != nil {
		return nil, fmt.Errorf("entry %s: parse created_at: %w", id, err)
	}
	if entry.UpdatedAt, err = parseTimeString(updatedRaw); err != nil {
		return nil, fmt.Errorf("entry %s: parse updated_at: %w", id, err)
	}
	if entry.DueDate, err = parseTimeString(dueRaw); err != nil {
		return nil, fmt.Errorf("entry %s: parse due_date: %w", id, err)
	}
	if entry.AssignedAt, err = parseNullableTime(assignedAtRaw); err != nil {
		return nil, fmt.Errorf("entry %s: parse assigned_at: %w", id, err)
	}
	if entry.StartedAt, err = parseNullableTime(startedRaw); err != nil {
		return nil, fmt.Errorf("entry %s: parse started_at: %w", id, err)
	}
	if entry.CompletedAt, err = parseNullableTime(completedRaw); err != nil {
		return nil, fmt.Errorf("entry %s: parse completed_at: %w", id, err)
	}
	return entry, nil
}

func parseNullableTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func marshalMetadata(meta map[string]any) (any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(raw), nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
