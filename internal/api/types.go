package api

import (
	"time"

	"trustlabel/internal/queue"
)

// QueueEntry describes a queue entry in a transport-friendly format.
type QueueEntry struct {
	ID               string         `json:"id"`
	ProductID        string         `json:"productId"`
	RequestedByID    string         `json:"requestedById"`
	AssignedToID     string         `json:"assignedToId,omitempty"`
	Category         string         `json:"category"`
	Priority         string         `json:"priority"`
	Status           string         `json:"status"`
	EstimatedMinutes int            `json:"estimatedDuration"`
	ActualMinutes    *int           `json:"actualDuration,omitempty"`
	Notes            string         `json:"notes,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        string         `json:"createdAt"`
	UpdatedAt        string         `json:"updatedAt"`
	AssignedAt       string         `json:"assignedAt,omitempty"`
	StartedAt        string         `json:"startedAt,omitempty"`
	CompletedAt      string         `json:"completedAt,omitempty"`
	DueDate          string         `json:"dueDate"`
}

// HistoryRecord describes one audit row in a transport-friendly format.
type HistoryRecord struct {
	ID             string         `json:"id"`
	QueueID        string         `json:"queueId"`
	Action         string         `json:"action"`
	PreviousStatus string         `json:"previousStatus,omitempty"`
	NewStatus      string         `json:"newStatus"`
	PerformedByID  string         `json:"performedById"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      string         `json:"createdAt"`
}

// Pagination describes the page envelope returned by queue listings.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// QueuePage is one page of queue entries plus its pagination envelope.
type QueuePage struct {
	Entries    []QueueEntry `json:"entries"`
	Pagination Pagination   `json:"pagination"`
}

// FromEntry converts a domain entry to its API shape.
func FromEntry(entry *queue.Entry) QueueEntry {
	dto := QueueEntry{
		ID:               entry.ID,
		ProductID:        entry.ProductID,
		RequestedByID:    entry.RequestedByID,
		AssignedToID:     entry.AssignedToID,
		Category:         entry.Category,
		Priority:         string(entry.Priority),
		Status:           string(entry.Status),
		EstimatedMinutes: entry.EstimatedMinutes,
		ActualMinutes:    entry.ActualMinutes,
		Notes:            entry.Notes,
		Metadata:         entry.Metadata,
		CreatedAt:        formatTimestamp(entry.CreatedAt),
		UpdatedAt:        formatTimestamp(entry.UpdatedAt),
		DueDate:          formatTimestamp(entry.DueDate),
	}
	if entry.AssignedAt != nil {
		dto.AssignedAt = formatTimestamp(*entry.AssignedAt)
	}
	if entry.StartedAt != nil {
		dto.StartedAt = formatTimestamp(*entry.StartedAt)
	}
	if entry.CompletedAt != nil {
		dto.CompletedAt = formatTimestamp(*entry.CompletedAt)
	}
	return dto
}

// FromEntries converts a slice of domain entries.
func FromEntries(entries []*queue.Entry) []QueueEntry {
	out := make([]QueueEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromHistory converts a domain history record to its API shape.
func FromHistory(rec *queue.HistoryRecord) HistoryRecord {
	return HistoryRecord{
		ID:             rec.ID,
		QueueID:        rec.QueueID,
		Action:         string(rec.Action),
		PreviousStatus: string(rec.PreviousStatus),
		NewStatus:      string(rec.NewStatus),
		PerformedByID:  rec.PerformedByID,
		Reason:         rec.Reason,
		Metadata:       rec.Metadata,
		CreatedAt:      formatTimestamp(rec.CreatedAt),
	}
}

// FromHistoryRecords converts a slice of domain history records.
func FromHistoryRecords(records []*queue.HistoryRecord) []HistoryRecord {
	out := make([]HistoryRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, FromHistory(rec))
	}
	return out
}

// NewPagination derives the page envelope from a total match count.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339Nano)
}
