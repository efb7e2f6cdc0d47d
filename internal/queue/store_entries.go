package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewEntry carries caller-supplied fields for a queue entry insert.
type NewEntry struct {
	ProductID        string
	RequestedByID    string
	Category         string
	Priority         Priority
	EstimatedMinutes int
	Notes            string
	Metadata         map[string]any
}

// Create inserts a pending entry with a due date computed from its priority.
// The product and requesting user must exist.
func (s *Store) Create(ctx context.Context, in NewEntry) (*Entry, error) {
	if strings.TrimSpace(in.ProductID) == "" {
		return nil, fmt.Errorf("%w: product id required", ErrValidation)
	}
	if strings.TrimSpace(in.RequestedByID) == "" {
		return nil, fmt.Errorf("%w: requesting user id required", ErrValidation)
	}
	if strings.TrimSpace(in.Category) == "" {
		return nil, fmt.Errorf("%w: category required", ErrValidation)
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	} else if _, ok := ParsePriority(string(priority)); !ok {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, in.Priority)
	}
	estimated := in.EstimatedMinutes
	if estimated <= 0 {
		estimated = s.defaultEstimate
	}

	metadataVal, err := marshalMetadata(in.Metadata)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	dueDate := now.Add(s.slaWindow(priority))

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		row := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM products WHERE id = ?`, in.ProductID)
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("check product: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: product %s", ErrNotFound, in.ProductID)
		}

		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO queue_entries (
                id, product_id, requested_by_id, category, priority, status,
                estimated_minutes, notes, metadata_json, version, created_at, updated_at, due_date
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
			id,
			in.ProductID,
			in.RequestedByID,
			strings.TrimSpace(in.Category),
			priority,
			StatusPending,
			estimated,
			nullableString(strings.TrimSpace(in.Notes)),
			metadataVal,
			formatTime(now),
			formatTime(now),
			formatTime(dueDate),
		)
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id)
}

// slaWindow resolves the due-date window, preferring a configured override.
func (s *Store) slaWindow(p Priority) time.Duration {
	if d, ok := s.slaWindows[p]; ok && d > 0 {
		return d
	}
	return p.SLAWindow()
}

// GetByID fetches a queue entry by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: queue entry %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// Filters narrows List results. Zero values are ignored.
type Filters struct {
	Status        Status
	AssignedToID  string
	RequestedByID string
	Category      string
	Priority      Priority
}

// ListOptions controls pagination and ordering of List results.
type ListOptions struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// sortColumns whitelists user-supplied sort fields against real columns.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"dueDate":   "due_date",
	"priority":  "priority",
	"status":    "status",
	"category":  "category",
}

// Normalize applies defaults and validates the sort field and order.
func (o *ListOptions) Normalize() error {
	if o.Page <= 0 {
		o.Page = 1
	}
	if o.Limit <= 0 {
		o.Limit = defaultPageLimit
	}
	if o.Limit > maxPageLimit {
		o.Limit = maxPageLimit
	}
	if o.SortBy == "" {
		o.SortBy = "createdAt"
	}
	if _, ok := sortColumns[o.SortBy]; !ok {
		return fmt.Errorf("%w: unknown sort field %q", ErrValidation, o.SortBy)
	}
	switch strings.ToLower(o.SortOrder) {
	case "":
		o.SortOrder = "desc"
	case "asc", "desc":
		o.SortOrder = strings.ToLower(o.SortOrder)
	default:
		return fmt.Errorf("%w: sort order must be asc or desc", ErrValidation)
	}
	return nil
}

// List returns a page of entries matching the filters plus the total match count.
func (s *Store) List(ctx context.Context, filters Filters, opts ListOptions) ([]*Entry, int, error) {
	if err := opts.Normalize(); err != nil {
		return nil, 0, err
	}

	var (
		conds []string
		args  []any
	)
	if filters.Status != "" {
		if _, ok := ParseStatus(string(filters.Status)); !ok {
			return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, filters.Status)
		}
		conds = append(conds, "status = ?")
		args = append(args, filters.Status)
	}
	if filters.AssignedToID != "" {
		conds = append(conds, "assigned_to_id = ?")
		args = append(args, filters.AssignedToID)
	}
	if filters.RequestedByID != "" {
		conds = append(conds, "requested_by_id = ?")
		args = append(args, filters.RequestedByID)
	}
	if filters.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filters.Category)
	}
	if filters.Priority != "" {
		if _, ok := ParsePriority(string(filters.Priority)); !ok {
			return nil, 0, fmt.Errorf("%w: unknown priority %q", ErrValidation, filters.Priority)
		}
		conds = append(conds, "priority = ?")
		args = append(args, filters.Priority)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM queue_entries`+where, args...)
	if err := row.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	order := fmt.Sprintf(" ORDER BY %s %s", sortColumns[opts.SortBy], strings.ToUpper(opts.SortOrder))
	query := `SELECT ` + entryColumns + ` FROM queue_entries` + where + order + ` LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, (opts.Page-1)*opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}
