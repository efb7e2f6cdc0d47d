// Package assignment selects validators for pending queue entries using a
// pluggable strategy and hands the chosen candidate to the queue service.
package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"trustlabel/internal/logging"
	"trustlabel/internal/queue"
)

// Strategy names a validator selection policy.
type Strategy string

const (
	RoundRobin       Strategy = "ROUND_ROBIN"
	ExpertiseBased   Strategy = "EXPERTISE_BASED"
	WorkloadBalanced Strategy = "WORKLOAD_BALANCED"
)

// ParseStrategy converts a string into a known Strategy.
func ParseStrategy(value string) (Strategy, bool) {
	switch Strategy(strings.ToUpper(strings.TrimSpace(value))) {
	case RoundRobin:
		return RoundRobin, true
	case ExpertiseBased:
		return ExpertiseBased, true
	case WorkloadBalanced:
		return WorkloadBalanced, true
	default:
		return "", false
	}
}

// Directory yields the validators eligible for assignment, in a stable order.
type Directory interface {
	Validators(ctx context.Context) ([]queue.User, error)
}

// WorkloadCounter reports how many in-flight entries a validator already has.
type WorkloadCounter interface {
	CountActiveForValidator(ctx context.Context, validatorID string) (int, error)
}

// Scorer ranks a candidate for an entry under the expertise strategy. Higher
// wins; candidates scoring below zero are excluded. The default scorer ranks
// every candidate equally, which makes the strategy a documented pass-through
// that returns the first candidate until a real scorer is supplied.
type Scorer func(candidate queue.User, entry *queue.Entry) float64

// DefaultScorer ranks all candidates equally.
func DefaultScorer(queue.User, *queue.Entry) float64 { return 0 }

// Engine picks one validator for a pending entry.
type Engine struct {
	directory Directory
	workload  WorkloadCounter
	scorer    Scorer
	logger    *slog.Logger
}

// NewEngine builds an engine over the validator directory and workload counts.
// A nil scorer falls back to DefaultScorer.
func NewEngine(directory Directory, workload WorkloadCounter, scorer Scorer, logger *slog.Logger) *Engine {
	if scorer == nil {
		scorer = DefaultScorer
	}
	return &Engine{
		directory: directory,
		workload:  workload,
		scorer:    scorer,
		logger:    logging.NewComponentLogger(logger, "assignment"),
	}
}

// Select returns the validator chosen by the strategy, or ok=false when no
// eligible validator exists.
func (e *Engine) Select(ctx context.Context, strategy Strategy, entry *queue.Entry) (queue.User, bool, error) {
	candidates, err := e.directory.Validators(ctx)
	if err != nil {
		return queue.User{}, false, fmt.Errorf("list validators: %w", err)
	}
	if len(candidates) == 0 {
		return queue.User{}, false, nil
	}

	var (
		selected queue.User
		ok       bool
	)
	switch strategy {
	case WorkloadBalanced:
		selected, ok, err = e.selectByWorkload(ctx, candidates)
	case ExpertiseBased:
		selected, ok, err = e.selectByExpertise(candidates, entry)
	case RoundRobin:
		// Deterministic first pick of the externally ordered candidate list.
		// No rotation state is kept across calls.
		selected, ok = candidates[0], true
	default:
		return queue.User{}, false, fmt.Errorf("unknown strategy %q", strategy)
	}
	if err != nil {
		return queue.User{}, false, err
	}
	if ok {
		e.logger.Debug("validator selected",
			logging.String("strategy", string(strategy)),
			logging.String("queue_id", entry.ID),
			logging.String("validator_id", selected.ID))
	}
	return selected, ok, nil
}

func (e *Engine) selectByExpertise(candidates []queue.User, entry *queue.Entry) (queue.User, bool, error) {
	best := -1
	bestScore := 0.0
	for i, candidate := range candidates {
		score := e.scorer(candidate, entry)
		if score < 0 {
			continue
		}
		if best == -1 || score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best == -1 {
		return queue.User{}, false, nil
	}
	return candidates[best], true, nil
}

func (e *Engine) selectByWorkload(ctx context.Context, candidates []queue.User) (queue.User, bool, error) {
	best := 0
	bestCount := -1
	for i, candidate := range candidates {
		count, err := e.workload.CountActiveForValidator(ctx, candidate.ID)
		if err != nil {
			return queue.User{}, false, fmt.Errorf("workload for %s: %w", candidate.ID, err)
		}
		if bestCount == -1 || count < bestCount {
			best = i
			bestCount = count
		}
	}
	return candidates[best], true, nil
}
