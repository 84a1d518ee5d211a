// Package analysis turns raw usage export rows into cost aggregates, resource
// rankings and, through a Recommender, a complete result bundle.
package analysis

import (
	"errors"
	"finops-usage/domain/usage"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Recommender derives recommendations from one generation's immutable views.
type Recommender interface {
	Recommend(records []usage.Record, agg usage.Aggregates, rank usage.Rankings) []usage.Recommendation
}

// Engine runs the normalize → aggregate → rank → recommend pipeline.
type Engine struct {
	opts        Options
	recommender Recommender
	now         func() time.Time
}

// NewEngine creates an Engine. A nil recommender yields bundles without recommendations.
func NewEngine(opts Options, recommender Recommender) *Engine {
	return &Engine{opts: opts.normalized(), recommender: recommender, now: time.Now}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Compute builds a new bundle from raw rows. It returns usage.ErrEmptyDataset when
// every row is dropped, and a *usage.ComputationError when a stage panics or
// produces a non-finite figure.
func (e *Engine) Compute(rows []map[string]string, source string) (b *usage.Bundle, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, &usage.ComputationError{Stage: "pipeline", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	records, stats := Normalize(rows)
	slog.Debug("analysis.normalize.done", "source", source, "rows", stats.Rows, "kept", stats.Kept, "dropped", stats.Dropped, "bad_numbers", stats.BadNumbers)
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %d rows read: %w", source, stats.Rows, usage.ErrEmptyDataset)
	}

	now := e.now()
	agg := Aggregate(records, e.opts, now)
	rank := Rank(records, float64(agg.Summary.TotalCost), e.opts)
	var recs []usage.Recommendation
	if e.recommender != nil {
		recs = e.recommender.Recommend(records, agg, rank)
	}
	if recs == nil {
		recs = []usage.Recommendation{}
	}

	b = &usage.Bundle{
		Generation:      uuid.NewString(),
		ComputedAt:      now.UTC(),
		Source:          source,
		Aggregates:      agg,
		Rankings:        rank,
		Recommendations: recs,
		Records:         records,
	}
	if err := checkFinite(b); err != nil {
		return nil, err
	}
	return b, nil
}

var errNonFinite = errors.New("non-finite value")

func checkFinite(b *usage.Bundle) error {
	fail := func(stage string) error {
		return &usage.ComputationError{Stage: stage, Err: errNonFinite}
	}
	s := b.Summary
	for _, v := range []float64{float64(s.TotalCost), s.TotalUsage, float64(s.AverageDailyCost), float64(s.AverageCostPerResource)} {
		if !usage.Finite(v) {
			return fail("summary")
		}
	}
	for _, buckets := range b.Breakdowns {
		for _, bk := range buckets {
			if !usage.Finite(float64(bk.Cost)) || !usage.Finite(bk.UsageQuantity) || !usage.Finite(float64(bk.Percentage)) {
				return fail("breakdown")
			}
		}
	}
	for _, p := range b.Trend.Points {
		if !usage.Finite(float64(p.Cost)) {
			return fail("trend")
		}
	}
	for _, r := range b.MostExpensive {
		if !usage.Finite(float64(r.Cost)) || !usage.Finite(r.UsageQuantity) || !usage.Finite(float64(r.CostPerUnit)) {
			return fail("ranking")
		}
	}
	for _, r := range b.Recommendations {
		if !usage.Finite(float64(r.EstimatedSavings)) || r.EstimatedSavings < 0 {
			return fail("recommendation " + r.ID)
		}
	}
	return nil
}
