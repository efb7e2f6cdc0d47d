package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trustlabel/internal/audit"
	"trustlabel/internal/logging"
	"trustlabel/internal/queue"
)

type captureWriter struct {
	mu       sync.Mutex
	failures int
	records  []queue.HistoryRecord
}

func (w *captureWriter) InsertHistory(_ context.Context, rec queue.HistoryRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures > 0 {
		w.failures--
		return errors.New("insert failed")
	}
	w.records = append(w.records, rec)
	return nil
}

func (w *captureWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

func TestRecordWritesSynchronously(t *testing.T) {
	writer := &captureWriter{}
	recorder := audit.NewRecorder(writer, logging.NewNop())
	defer recorder.Close()

	recorder.Record(context.Background(), queue.HistoryRecord{
		QueueID:       "q1",
		Action:        queue.ActionCreated,
		NewStatus:     queue.StatusPending,
		PerformedByID: "brand-1",
	})

	if writer.count() != 1 {
		t.Fatalf("expected 1 record, got %d", writer.count())
	}
	writer.mu.Lock()
	rec := writer.records[0]
	writer.mu.Unlock()
	if rec.Metadata["timestamp"] == nil {
		t.Fatal("expected timestamp metadata to be injected")
	}
	if rec.CreatedAt.IsZero() {
		t.Fatal("expected createdAt to be defaulted")
	}
}

func TestRecordNeverFailsTheCaller(t *testing.T) {
	writer := &captureWriter{failures: 100}
	recorder := audit.NewRecorder(writer, logging.NewNop())
	defer recorder.Close()

	// Must not panic or block even though every insert fails.
	recorder.Record(context.Background(), queue.HistoryRecord{
		QueueID: "q1", Action: queue.ActionAssigned, NewStatus: queue.StatusAssigned,
	})
}

func TestFailedRecordIsRetriedInBackground(t *testing.T) {
	// First insert fails, the background retry succeeds.
	writer := &captureWriter{failures: 1}
	recorder := audit.NewRecorder(writer, logging.NewNop())

	recorder.Record(context.Background(), queue.HistoryRecord{
		QueueID: "q1", Action: queue.ActionStatusChanged, NewStatus: queue.StatusInProgress,
	})

	deadline := time.Now().Add(5 * time.Second)
	for writer.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	recorder.Close()

	if writer.count() != 1 {
		t.Fatalf("expected the retry to land the record, got %d", writer.count())
	}
}

type fromRecordKey struct{}

// stubbornWriter always fails. The first background attempt parks until
// released so the remaining rows pile up in the retry queue.
type stubbornWriter struct {
	mu         sync.Mutex
	background int
	entered    chan struct{}
	release    chan struct{}
	park       sync.Once
}

func (w *stubbornWriter) InsertHistory(ctx context.Context, _ queue.HistoryRecord) error {
	if ctx.Value(fromRecordKey{}) != nil {
		return errors.New("insert failed")
	}
	w.park.Do(func() {
		close(w.entered)
		<-w.release
	})
	w.mu.Lock()
	w.background++
	w.mu.Unlock()
	return errors.New("insert failed")
}

func (w *stubbornWriter) backgroundCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.background
}

func TestShutdownGivesEachRowOneAttempt(t *testing.T) {
	writer := &stubbornWriter{entered: make(chan struct{}), release: make(chan struct{})}
	recorder := audit.NewRecorder(writer, logging.NewNop())

	ctx := context.WithValue(context.Background(), fromRecordKey{}, true)
	for i := 0; i < 4; i++ {
		recorder.Record(ctx, queue.HistoryRecord{
			QueueID: "q1", Action: queue.ActionCreated, NewStatus: queue.StatusPending,
		})
	}

	<-writer.entered
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(writer.release)
	}()
	recorder.Close()

	// Rows flushed after shutdown get a single attempt each rather than
	// burning the full retry budget back to back.
	if got := writer.backgroundCalls(); got > 4 {
		t.Fatalf("expected at most one attempt per row during shutdown, got %d", got)
	}
}

func TestCloseFlushesPendingRetries(t *testing.T) {
	writer := &captureWriter{failures: 1}
	recorder := audit.NewRecorder(writer, logging.NewNop())

	recorder.Record(context.Background(), queue.HistoryRecord{
		QueueID: "q1", Action: queue.ActionCreated, NewStatus: queue.StatusPending,
	})
	recorder.Close()

	if writer.count() != 1 {
		t.Fatalf("expected Close to flush the retry queue, got %d records", writer.count())
	}
}
