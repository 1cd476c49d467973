// Package selector picks one model descriptor for a request: exact id
// match, then fuzzy resolution, then task-type filtering with a strategy
// tie-break.
package selector

import (
	"errors"

	"github.com/modelmux/modelmux/internal/matching"
	"github.com/modelmux/modelmux/internal/platform/logger"
	"github.com/modelmux/modelmux/internal/registry"
	"go.uber.org/zap"
)

// ErrNoCandidates is returned only when the registry snapshot is empty.
var ErrNoCandidates = errors.New("no models available in registry")

// Strategy is the tie-break policy among eligible descriptors.
type Strategy string

const (
	StrategyCost        Strategy = "cost"
	StrategyPerformance Strategy = "performance"
	StrategyBalanced    Strategy = "balanced"
	StrategyLocal       Strategy = "local"
)

// MatchKind records how a selection was made.
type MatchKind string

const (
	MatchExact            MatchKind = "exact"
	MatchFuzzy            MatchKind = "fuzzy"
	MatchTaskFiltered     MatchKind = "task-filtered"
	MatchStrategyFallback MatchKind = "strategy-fallback"
)

// Selection is a chosen descriptor plus provenance.
type Selection struct {
	Descriptor  registry.ModelDescriptor
	MatchKind   MatchKind
	Confidence  float64
	RequestedID string
}

// Select resolves or auto-selects a descriptor from the snapshot. A
// requested id is tried exactly, then fuzzily; an unresolvable id falls
// through to auto-selection rather than failing. Only an empty snapshot
// is an error.
func Select(snapshot []registry.ModelDescriptor, taskType string, strategy Strategy, requestedID string) (Selection, error) {
	if len(snapshot) == 0 {
		return Selection{}, ErrNoCandidates
	}

	if taskType == "" {
		taskType = registry.DefaultTaskType
	}

	if requestedID != "" {
		for _, d := range snapshot {
			if d.ID == requestedID {
				return Selection{Descriptor: d, MatchKind: MatchExact, Confidence: 1.0, RequestedID: requestedID}, nil
			}
		}

		ids := make([]string, len(snapshot))
		for i, d := range snapshot {
			ids[i] = d.ID
		}

		if match, score, ok := matching.Resolve(requestedID, ids); ok {
			for _, d := range snapshot {
				if d.ID == match {
					logger.Info("Fuzzy-matched requested model",
						zap.String("requested", requestedID),
						zap.String("matched", match),
						zap.Float64("score", score),
					)
					return Selection{Descriptor: d, MatchKind: MatchFuzzy, Confidence: score, RequestedID: requestedID}, nil
				}
			}
		}

		logger.Warn("Requested model not available, falling back to auto-selection",
			zap.String("requested", requestedID),
		)
	}

	chosen := applyStrategy(eligible(snapshot, taskType), strategy)

	kind := MatchTaskFiltered
	if requestedID != "" {
		kind = MatchStrategyFallback
	}

	return Selection{Descriptor: chosen, MatchKind: kind, RequestedID: requestedID}, nil
}

// NextFallback picks the lowest-priority-value descriptor eligible for the
// task type, excluding already-tried ids. Used by the execution engine to
// advance the fallback chain.
func NextFallback(snapshot []registry.ModelDescriptor, taskType string, tried map[string]bool) (registry.ModelDescriptor, bool) {
	if taskType == "" {
		taskType = registry.DefaultTaskType
	}

	var best registry.ModelDescriptor
	found := false
	for _, d := range snapshot {
		if tried[d.ID] || !d.SupportsTask(taskType) {
			continue
		}
		if !found || d.Priority < best.Priority {
			best = d
			found = true
		}
	}
	return best, found
}

// eligible filters the snapshot by task type; an empty pool falls back to
// the whole snapshot.
func eligible(snapshot []registry.ModelDescriptor, taskType string) []registry.ModelDescriptor {
	pool := make([]registry.ModelDescriptor, 0, len(snapshot))
	for _, d := range snapshot {
		if d.SupportsTask(taskType) {
			pool = append(pool, d)
		}
	}
	if len(pool) == 0 {
		return snapshot
	}
	return pool
}

// applyStrategy picks one descriptor from a non-empty pool. Unrecognized
// strategies behave as balanced.
func applyStrategy(pool []registry.ModelDescriptor, strategy Strategy) registry.ModelDescriptor {
	switch strategy {
	case StrategyCost:
		best := pool[0]
		for _, d := range pool[1:] {
			if d.CostPer1KTokens < best.CostPer1KTokens ||
				(d.CostPer1KTokens == best.CostPer1KTokens && d.Priority < best.Priority) {
				best = d
			}
		}
		return best

	case StrategyLocal:
		for _, d := range pool {
			if d.Provider == registry.ProviderOllama {
				return d
			}
		}
		return minPriority(pool)

	default: // performance, balanced, or anything unrecognized
		return minPriority(pool)
	}
}

func minPriority(pool []registry.ModelDescriptor) registry.ModelDescriptor {
	best := pool[0]
	for _, d := range pool[1:] {
		if d.Priority < best.Priority {
			best = d
		}
	}
	return best
}
