package analysis

import (
	"cmp"
	"finops-usage/domain/usage"
	"slices"
	"strings"
	"time"

	lo "github.com/samber/lo"
)

const (
	// DefaultPeriodDays is the averaging window when the caller supplies none.
	DefaultPeriodDays = 30
	// MaxPeriodDays caps any averaging or trend window.
	MaxPeriodDays = 366
	// DefaultLeastUsedThreshold bounds the usage quantity admitted to the least-used ranking.
	DefaultLeastUsedThreshold = 100.0
)

// Options tunes aggregation and ranking.
type Options struct {
	// PeriodDays is the window used for averages and the trend length.
	PeriodDays int
	// FoldCase groups breakdown categories, and the distinct location and type
	// counts, ignoring case and surrounding spaces. Resource names always
	// compare exactly. The zero value keeps exact string equality.
	FoldCase bool
	// LeastUsedThreshold admits resources with usage strictly below it to the least-used ranking.
	LeastUsedThreshold float64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{PeriodDays: DefaultPeriodDays, LeastUsedThreshold: DefaultLeastUsedThreshold}
}

func (o Options) normalized() Options {
	if o.PeriodDays <= 0 {
		o.PeriodDays = DefaultPeriodDays
	}
	if o.LeastUsedThreshold <= 0 {
		o.LeastUsedThreshold = DefaultLeastUsedThreshold
	}
	return o
}

// Aggregate computes the summary, every dimensional breakdown and the trend series.
func Aggregate(records []usage.Record, opts Options, today time.Time) usage.Aggregates {
	opts = opts.normalized()
	summary := Summarize(records, opts.PeriodDays, opts.FoldCase)
	total := float64(summary.TotalCost)
	breakdowns := make(map[usage.Dimension][]usage.Bucket, len(usage.Dimensions))
	for _, d := range usage.Dimensions {
		breakdowns[d] = Breakdown(records, d, total, opts.FoldCase)
	}
	return usage.Aggregates{
		Summary:    summary,
		Breakdowns: breakdowns,
		Trend:      BuildTrend(records, opts.PeriodDays, today),
	}
}

// Summarize totals cost and usage. The daily average divides by periodDays, not
// by the number of days present in the data.
func Summarize(records []usage.Record, periodDays int, foldCase bool) usage.Summary {
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}
	total := lo.SumBy(records, func(r usage.Record) float64 { return float64(r.Cost) })
	key := groupKey(foldCase)
	distinct := func(field func(usage.Record) string) int {
		return len(lo.Uniq(lo.Map(records, func(r usage.Record, _ int) string { return key(field(r)) })))
	}

	s := usage.Summary{
		TotalCost:           usage.Money(total),
		TotalUsage:          lo.SumBy(records, func(r usage.Record) float64 { return r.Quantity }),
		ResourceCount:       len(records),
		DataPoints:          len(records),
		AverageDailyCost:    usage.Money(total / float64(periodDays)),
		UniqueResources:     len(lo.UniqBy(records, func(r usage.Record) string { return r.ResourceName })),
		UniqueLocations:     distinct(func(r usage.Record) string { return r.Location }),
		UniqueResourceTypes: distinct(func(r usage.Record) string { return r.ResourceType }),
		PeriodDays:          periodDays,
	}
	if len(records) > 0 {
		s.AverageCostPerResource = usage.Money(total / float64(len(records)))
	}
	return s
}

// Breakdown groups records by dimension d, summing cost and quantity per group.
// Buckets are ordered by cost descending, then category ascending; percentages
// are relative to totalCost.
func Breakdown(records []usage.Record, d usage.Dimension, totalCost float64, foldCase bool) []usage.Bucket {
	field := dimensionField(d)
	key := groupKey(foldCase)
	index := make(map[string]int)
	buckets := make([]usage.Bucket, 0)
	for _, r := range records {
		label := field(r)
		k := key(label)
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, usage.Bucket{Category: label})
		}
		buckets[i].Cost += r.Cost
		buckets[i].UsageQuantity += r.Quantity
	}
	for i := range buckets {
		buckets[i].Percentage = usage.Share(float64(buckets[i].Cost), totalCost)
	}
	slices.SortStableFunc(buckets, func(a, b usage.Bucket) int {
		if c := cmp.Compare(b.Cost, a.Cost); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})
	return buckets
}

func dimensionField(d usage.Dimension) func(usage.Record) string {
	switch d {
	case usage.ByLocation:
		return func(r usage.Record) string { return r.Location }
	case usage.ByService, usage.ByMeter:
		return func(r usage.Record) string { return r.MeterCategory }
	case usage.ByMeterName:
		return func(r usage.Record) string { return r.MeterName }
	default:
		return func(r usage.Record) string { return r.ResourceType }
	}
}

// ParseDimension maps a query value to a dimension, defaulting to resource type.
func ParseDimension(s string) usage.Dimension {
	d := usage.Dimension(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(usage.Dimensions, d) {
		return d
	}
	return usage.ByResourceType
}

func groupKey(foldCase bool) func(string) string {
	if !foldCase {
		return func(s string) string { return s }
	}
	return func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
}
