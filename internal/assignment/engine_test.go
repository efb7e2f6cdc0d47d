package assignment_test

import (
	"context"
	"errors"
	"testing"

	"trustlabel/internal/assignment"
	"trustlabel/internal/logging"
	"trustlabel/internal/queue"
)

type fakeDirectory struct {
	validators []queue.User
	err        error
}

func (f *fakeDirectory) Validators(context.Context) ([]queue.User, error) {
	return f.validators, f.err
}

type fakeWorkload struct {
	counts map[string]int
	err    error
}

func (f *fakeWorkload) CountActiveForValidator(_ context.Context, id string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[id], nil
}

func validators(ids ...string) []queue.User {
	out := make([]queue.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, queue.User{ID: id, Name: id, Role: queue.RoleAdmin})
	}
	return out
}

func TestSelectRoundRobinPicksFirstCandidate(t *testing.T) {
	engine := assignment.NewEngine(
		&fakeDirectory{validators: validators("v1", "v2", "v3")},
		&fakeWorkload{},
		nil,
		logging.NewNop(),
	)

	selected, ok, err := engine.Select(context.Background(), assignment.RoundRobin, &queue.Entry{ID: "e1"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !ok || selected.ID != "v1" {
		t.Fatalf("expected v1, got %q ok=%v", selected.ID, ok)
	}
}

func TestSelectWithoutValidators(t *testing.T) {
	engine := assignment.NewEngine(&fakeDirectory{}, &fakeWorkload{}, nil, logging.NewNop())

	_, ok, err := engine.Select(context.Background(), assignment.RoundRobin, &queue.Entry{ID: "e1"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if ok {
		t.Fatal("expected no selection without validators")
	}
}

func TestSelectWorkloadBalanced(t *testing.T) {
	workload := &fakeWorkload{counts: map[string]int{"v1": 3, "v2": 1, "v3": 2}}
	engine := assignment.NewEngine(
		&fakeDirectory{validators: validators("v1", "v2", "v3")},
		workload,
		nil,
		logging.NewNop(),
	)

	selected, ok, err := engine.Select(context.Background(), assignment.WorkloadBalanced, &queue.Entry{ID: "e1"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !ok || selected.ID != "v2" {
		t.Fatalf("expected least-loaded v2, got %q", selected.ID)
	}
}

func TestSelectWorkloadBalancedTieGoesToFirst(t *testing.T) {
	workload := &fakeWorkload{counts: map[string]int{"v1": 2, "v2": 2}}
	engine := assignment.NewEngine(
		&fakeDirectory{validators: validators("v1", "v2")},
		workload,
		nil,
		logging.NewNop(),
	)

	selected, ok, err := engine.Select(context.Background(), assignment.WorkloadBalanced, &queue.Entry{ID: "e1"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !ok || selected.ID != "v1" {
		t.Fatalf("expected tie to resolve to v1, got %q", selected.ID)
	}
}

func TestSelectExpertiseWithScorer(t *testing.T) {
	scorer := func(candidate queue.User, entry *queue.Entry) float64 {
		switch candidate.ID {
		case "v2":
			return 0.9
		case "v3":
			return -1 // opted out
		default:
			return 0.1
		}
	}
	engine := assignment.NewEngine(
		&fakeDirectory{validators: validators("v1", "v2", "v3")},
		&fakeWorkload{},
		scorer,
		logging.NewNop(),
	)

	selected, ok, err := engine.Select(context.Background(), assignment.ExpertiseBased, &queue.Entry{ID: "e1", Category: "organic"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !ok || selected.ID != "v2" {
		t.Fatalf("expected highest-scoring v2, got %q", selected.ID)
	}
}

func TestSelectExpertiseDefaultScorerFallsBackToFirst(t *testing.T) {
	engine := assignment.NewEngine(
		&fakeDirectory{validators: validators("v1", "v2")},
		&fakeWorkload{},
		nil,
		logging.NewNop(),
	)

	selected, ok, err := engine.Select(context.Background(), assignment.ExpertiseBased, &queue.Entry{ID: "e1"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !ok || selected.ID != "v1" {
		t.Fatalf("expected first candidate under default scorer, got %q", selected.ID)
	}
}

func TestSelectExpertiseAllExcluded(t *testing.T) {
	scorer := func(queue.User, *queue.Entry) float64 { return -1 }
	engine := assignment.NewEngine(
		&fakeDirectory{validators: validators("v1", "v2")},
		&fakeWorkload{},
		scorer,
		logging.NewNop(),
	)

	_, ok, err := engine.Select(context.Background(), assignment.ExpertiseBased, &queue.Entry{ID: "e1"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if ok {
		t.Fatal("expected no selection when every candidate is excluded")
	}
}

func TestSelectPropagatesWorkloadErrors(t *testing.T) {
	boom := errors.New("count failed")
	engine := assignment.NewEngine(
		&fakeDirectory{validators: validators("v1")},
		&fakeWorkload{err: boom},
		nil,
		logging.NewNop(),
	)

	_, _, err := engine.Select(context.Background(), assignment.WorkloadBalanced, &queue.Entry{ID: "e1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected workload error, got %v", err)
	}
}

func TestParseStrategy(t *testing.T) {
	if s, ok := assignment.ParseStrategy("workload_balanced"); !ok || s != assignment.WorkloadBalanced {
		t.Fatalf("ParseStrategy(workload_balanced) = %q, %v", s, ok)
	}
	if _, ok := assignment.ParseStrategy("RANDOM"); ok {
		t.Fatal("expected unknown strategy to be rejected")
	}
}
