// Package audit appends immutable history rows for queue mutations. Writes are
// best-effort: a failed insert is retried from a bounded queue in the
// background and dead-lettered to the log when the queue is full, but it never
// fails the operation that produced it.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trustlabel/internal/logging"
	"trustlabel/internal/queue"
)

// HistoryWriter is the persistence surface the recorder needs.
type HistoryWriter interface {
	InsertHistory(ctx context.Context, rec queue.HistoryRecord) error
}

const (
	retryQueueSize = 64
	retryBackoff   = 250 * time.Millisecond
	retryAttempts  = 3
)

// Recorder writes audit rows synchronously and falls back to background
// retries on failure.
type Recorder struct {
	writer HistoryWriter
	logger *slog.Logger

	retry  chan queue.HistoryRecord
	done   chan struct{}
	wg     sync.WaitGroup
	closed sync.Once
}

// NewRecorder starts a recorder draining its retry queue until Close.
func NewRecorder(writer HistoryWriter, logger *slog.Logger) *Recorder {
	r := &Recorder{
		writer: writer,
		logger: logging.NewComponentLogger(logger, "audit"),
		retry:  make(chan queue.HistoryRecord, retryQueueSize),
		done:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.drainRetries()
	return r
}

// Record appends one history row for a queue mutation. Failures are logged and
// queued for retry; they are never returned to the caller.
func (r *Recorder) Record(ctx context.Context, rec queue.HistoryRecord) {
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	if _, ok := rec.Metadata["timestamp"]; !ok {
		rec.Metadata["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	err := r.writer.InsertHistory(ctx, rec)
	if err == nil {
		return
	}
	r.logger.Warn("history insert failed, queueing retry",
		logging.String("queue_id", rec.QueueID),
		logging.String("action", string(rec.Action)),
		logging.Error(err))

	select {
	case r.retry <- rec:
	default:
		r.logger.Error("audit retry queue full, dropping history row",
			logging.String("queue_id", rec.QueueID),
			logging.String("action", string(rec.Action)),
			logging.String("new_status", string(rec.NewStatus)),
			logging.String("performed_by", rec.PerformedByID))
	}
}

func (r *Recorder) drainRetries() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			// Final drain so Close does not lose queued rows that would still insert.
			for {
				select {
				case rec := <-r.retry:
					r.attempt(rec)
				default:
					return
				}
			}
		case rec := <-r.retry:
			r.attempt(rec)
		}
	}
}

func (r *Recorder) attempt(rec queue.HistoryRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	for i := 0; i < retryAttempts; i++ {
		if err = r.writer.InsertHistory(ctx, rec); err == nil {
			return
		}
		if i == retryAttempts-1 {
			break
		}
		select {
		case <-time.After(retryBackoff):
		case <-r.done:
			// One attempt per row during shutdown; backing off would
			// stall Close and re-running without it would spin.
			r.logger.Error("audit retry abandoned during shutdown, dropping history row",
				logging.String("queue_id", rec.QueueID),
				logging.String("action", string(rec.Action)),
				logging.Error(err))
			return
		}
	}
	r.logger.Error("audit retry exhausted, dropping history row",
		logging.String("queue_id", rec.QueueID),
		logging.String("action", string(rec.Action)),
		logging.Error(err))
}

// Close stops the background drain after flushing pending retries.
func (r *Recorder) Close() {
	r.closed.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}
