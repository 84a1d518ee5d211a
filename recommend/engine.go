// Package recommend derives cost-optimization recommendations from aggregated
// usage. Each heuristic is a pure function of one generation's record set,
// aggregates and rankings, registered in an ordered list.
package recommend

import (
	"cmp"
	"finops-usage/domain/usage"
	"log/slog"
	"slices"
	"strings"
)

// Input is the read-only view a heuristic evaluates.
type Input struct {
	Records    []usage.Record
	Aggregates usage.Aggregates
	Rankings   usage.Rankings
}

// Heuristic inspects an Input and optionally contributes one recommendation.
type Heuristic struct {
	ID    string
	Apply func(in Input, p Policy) (usage.Recommendation, bool)
}

// Engine evaluates its registered heuristics in order.
type Engine struct {
	policy     Policy
	heuristics []Heuristic
}

// New creates an Engine with the default heuristic set.
func New(p Policy) *Engine {
	return &Engine{policy: p, heuristics: Defaults()}
}

// Register appends a heuristic.
func (e *Engine) Register(h Heuristic) { e.heuristics = append(e.heuristics, h) }

// Policy returns the thresholds in use.
func (e *Engine) Policy() Policy { return e.policy }

// Recommend runs every heuristic and returns their output ordered by severity, then id.
func (e *Engine) Recommend(records []usage.Record, agg usage.Aggregates, rank usage.Rankings) []usage.Recommendation {
	in := Input{Records: records, Aggregates: agg, Rankings: rank}
	out := make([]usage.Recommendation, 0, len(e.heuristics))
	for _, h := range e.heuristics {
		rec, ok := h.Apply(in, e.policy)
		if !ok {
			slog.Debug("recommend.heuristic.skip", "id", h.ID)
			continue
		}
		out = append(out, rec)
	}
	Sort(out)
	return out
}

// Sort orders recommendations by severity (High first), then id.
func Sort(recs []usage.Recommendation) {
	slices.SortStableFunc(recs, func(a, b usage.Recommendation) int {
		if c := cmp.Compare(a.Severity.Rank(), b.Severity.Rank()); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
