package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue entry.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

var allStatuses = []Status{
	StatusPending,
	StatusAssigned,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further transitions are permitted from the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsActive reports whether the status counts toward active workload.
func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusInProgress:
		return true
	default:
		return false
	}
}

// forwardTransitions is the happy-path state graph. Any non-terminal state may
// additionally transition to StatusFailed (cancellation).
var forwardTransitions = map[Status]Status{
	StatusPending:    StatusAssigned,
	StatusAssigned:   StatusInProgress,
	StatusInProgress: StatusCompleted,
}

// CanTransition reports whether moving from one status to another is legal.
// Skipping forward states is rejected; the only shortcut is termination to
// StatusFailed from any non-terminal state.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	return forwardTransitions[from] == to
}

// Priority determines the SLA due date assigned at creation.
type Priority string

const (
	PriorityUrgent Priority = "URGENT"
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

var slaHours = map[Priority]int{
	PriorityUrgent: 4,
	PriorityHigh:   24,
	PriorityNormal: 72,
	PriorityLow:    168,
}

// ParsePriority converts a string into a known Priority.
func ParsePriority(value string) (Priority, bool) {
	normalized := Priority(strings.ToUpper(strings.TrimSpace(value)))
	_, ok := slaHours[normalized]
	return normalized, ok
}

// SLAWindow returns the time allowed between creation and the due date.
func (p Priority) SLAWindow() time.Duration {
	hours, ok := slaHours[p]
	if !ok {
		hours = slaHours[PriorityNormal]
	}
	return time.Duration(hours) * time.Hour
}

// DefaultEstimatedMinutes is the work estimate applied when the caller omits one.
const DefaultEstimatedMinutes = 60

// SystemUserID attributes history rows produced by automatic operations.
const SystemUserID = "SYSTEM"

// Entry represents one validation request persisted in SQLite.
type Entry struct {
	ID               string
	ProductID        string
	RequestedByID    string
	AssignedToID     string
	Category         string
	Priority         Priority
	Status           Status
	EstimatedMinutes int
	ActualMinutes    *int
	Notes            string
	Metadata         map[string]any
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	AssignedAt       *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	DueDate          time.Time
}

// Overdue reports whether the entry is still active past its due date.
func (e *Entry) Overdue(now time.Time) bool {
	return e.Status.IsActive() && e.DueDate.Before(now)
}

// Action identifies the kind of audit record written for a mutation.
type Action string

const (
	ActionCreated       Action = "CREATED"
	ActionAssigned      Action = "ASSIGNED"
	ActionStatusChanged Action = "STATUS_CHANGED"
)

// HistoryRecord is one append-only audit row for a queue entry.
type HistoryRecord struct {
	ID             string
	QueueID        string
	Action         Action
	PreviousStatus Status
	NewStatus      Status
	PerformedByID  string
	Reason         string
	Metadata       map[string]any
	CreatedAt      time.Time
}

// Metrics aggregates queue state for dashboards and health output.
type Metrics struct {
	TotalPending     int     `json:"totalPending"`
	TotalAssigned    int     `json:"totalAssigned"`
	TotalInProgress  int     `json:"totalInProgress"`
	TotalCompleted   int     `json:"totalCompleted"`
	AvgProcessingMin float64 `json:"avgProcessingTime"`
	OverdueCount     int     `json:"overdueCount"`
	TotalActive      int     `json:"totalActive"`
}

// Role classifies users for authorization and validator eligibility.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleBrand    Role = "BRAND"
	RoleConsumer Role = "CONSUMER"
)

// ParseRole converts a string into a known Role.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleBrand:
		return RoleBrand, true
	case RoleConsumer:
		return RoleConsumer, true
	default:
		return "", false
	}
}

// User is a directory entry; validators are users with RoleAdmin.
type User struct {
	ID    string
	Name  string
	Email string
	Role  Role
}

// Product is the subject of a validation request.
type Product struct {
	ID      string
	Name    string
	OwnerID string
}
