package api

import (
	"context"
	"fmt"
	"log/slog"

	"trustlabel/internal/assignment"
	"trustlabel/internal/audit"
	"trustlabel/internal/events"
	"trustlabel/internal/logging"
	"trustlabel/internal/queue"
)

// CreateRequest carries caller-supplied fields for a new queue entry.
type CreateRequest struct {
	ProductID        string
	RequestedByID    string
	Category         string
	Priority         queue.Priority
	EstimatedMinutes int
	Notes            string
	Metadata         map[string]any
}

// QueueService composes the queue store, audit recorder, assignment engine,
// and event bus into the operations the transport layer exposes. Every
// mutation commits first, then records its audit row and publishes its event.
type QueueService struct {
	store    *queue.Store
	recorder *audit.Recorder
	bus      *events.Bus
	engine   *assignment.Engine

	autoAssign bool
	strategy   assignment.Strategy
	logger     *slog.Logger
}

// Options configures optional QueueService behavior.
type Options struct {
	AutoAssign bool
	Strategy   assignment.Strategy
	Scorer     assignment.Scorer
}

// NewQueueService wires the service and its assignment engine over the store.
func NewQueueService(store *queue.Store, recorder *audit.Recorder, bus *events.Bus, opts Options, logger *slog.Logger) *QueueService {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = assignment.ExpertiseBased
	}
	return &QueueService{
		store:      store,
		recorder:   recorder,
		bus:        bus,
		engine:     assignment.NewEngine(store, store, opts.Scorer, logger),
		autoAssign: opts.AutoAssign,
		strategy:   strategy,
		logger:     logging.NewComponentLogger(logger, "queue-service"),
	}
}

// CreateQueueEntry inserts a pending entry, records its creation, publishes
// the creation event, and then attempts automatic assignment. Auto-assignment
// failures never surface to the caller; the entry simply stays pending.
func (s *QueueService) CreateQueueEntry(ctx context.Context, in CreateRequest) (*queue.Entry, error) {
	entry, err := s.store.Create(ctx, queue.NewEntry{
		ProductID:        in.ProductID,
		RequestedByID:    in.RequestedByID,
		Category:         in.Category,
		Priority:         in.Priority,
		EstimatedMinutes: in.EstimatedMinutes,
		Notes:            in.Notes,
		Metadata:         in.Metadata,
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, queue.HistoryRecord{
		QueueID:       entry.ID,
		Action:        queue.ActionCreated,
		NewStatus:     queue.StatusPending,
		PerformedByID: in.RequestedByID,
		Reason:        "Queue entry created",
	})
	s.bus.Publish(events.Event{Type: events.EntryCreated, Entry: entry})

	if s.autoAssign {
		if assigned := s.tryAutoAssign(ctx, entry); assigned != nil {
			return assigned, nil
		}
	}
	return entry, nil
}

// GetQueue returns a page of entries matching the filters.
func (s *QueueService) GetQueue(ctx context.Context, filters queue.Filters, opts queue.ListOptions) (*QueuePage, error) {
	entries, total, err := s.store.List(ctx, filters, opts)
	if err != nil {
		return nil, err
	}
	return &QueuePage{
		Entries:    FromEntries(entries),
		Pagination: NewPagination(opts.Page, opts.Limit, total),
	}, nil
}

// AssignValidation moves a pending entry to a validator. The validator must
// exist in the directory.
func (s *QueueService) AssignValidation(ctx context.Context, queueID, validatorID, assignedByID string) (*queue.Entry, error) {
	validator, err := s.store.UserByID(ctx, validatorID)
	if err != nil {
		return nil, fmt.Errorf("validator lookup: %w", err)
	}

	transition, err := s.store.Assign(ctx, queueID, validatorID)
	if err != nil {
		return nil, err
	}
	entry := transition.Entry

	s.recorder.Record(ctx, queue.HistoryRecord{
		QueueID:        entry.ID,
		Action:         queue.ActionAssigned,
		PreviousStatus: transition.From,
		NewStatus:      transition.To,
		PerformedByID:  assignedByID,
		Reason:         fmt.Sprintf("Assigned to %s", validator.Name),
	})
	s.bus.Publish(events.Event{Type: events.EntryAssigned, Entry: entry, PreviousStatus: transition.From})

	return entry, nil
}

// UpdateStatus applies a status transition and records who asked for it.
func (s *QueueService) UpdateStatus(ctx context.Context, queueID string, newStatus queue.Status, userID, reason string) (*queue.Entry, error) {
	transition, err := s.store.UpdateStatus(ctx, queueID, newStatus)
	if err != nil {
		return nil, err
	}
	entry := transition.Entry

	s.recorder.Record(ctx, queue.HistoryRecord{
		QueueID:        entry.ID,
		Action:         queue.ActionStatusChanged,
		PreviousStatus: transition.From,
		NewStatus:      transition.To,
		PerformedByID:  userID,
		Reason:         reason,
	})
	s.bus.Publish(events.Event{Type: events.EntryUpdated, Entry: entry, PreviousStatus: transition.From})

	return entry, nil
}

// GetQueueMetrics computes queue rollups on demand.
func (s *QueueService) GetQueueMetrics(ctx context.Context) (queue.Metrics, error) {
	return s.store.Metrics(ctx)
}

// GetHistory returns the audit trail of an entry, oldest first.
func (s *QueueService) GetHistory(ctx context.Context, queueID string) ([]*queue.HistoryRecord, error) {
	if _, err := s.store.GetByID(ctx, queueID); err != nil {
		return nil, err
	}
	return s.store.HistoryForEntry(ctx, queueID)
}

// GetEntry fetches one entry by identifier.
func (s *QueueService) GetEntry(ctx context.Context, queueID string) (*queue.Entry, error) {
	return s.store.GetByID(ctx, queueID)
}

// tryAutoAssign selects a validator for a freshly created entry and assigns
// it under the SYSTEM performer. Any failure leaves the entry pending for
// manual assignment and returns nil.
func (s *QueueService) tryAutoAssign(ctx context.Context, entry *queue.Entry) *queue.Entry {
	if entry.Status != queue.StatusPending {
		return nil
	}

	candidate, ok, err := s.engine.Select(ctx, s.strategy, entry)
	if err != nil {
		s.logger.Warn("auto-assignment selection failed",
			logging.String("queue_id", entry.ID),
			logging.Error(err))
		return nil
	}
	if !ok {
		s.logger.Debug("no eligible validator, entry stays pending",
			logging.String("queue_id", entry.ID))
		return nil
	}

	assigned, err := s.AssignValidation(ctx, entry.ID, candidate.ID, queue.SystemUserID)
	if err != nil {
		s.logger.Warn("auto-assignment failed",
			logging.String("queue_id", entry.ID),
			logging.String("validator_id", candidate.ID),
			logging.Error(err))
		return nil
	}
	return assigned
}
