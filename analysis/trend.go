package analysis

import (
	"finops-usage/domain/usage"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"
)

// trendJitter bounds the synthesized daily deviation around the average.
const trendJitter = 0.20

const dayLayout = "2006-01-02"

// BuildTrend returns periodDays daily points, oldest first. When records carry
// dates the series is bucketed by day, ending on the latest observed day; rows
// without a date are left out of that series. Otherwise the series is
// synthesized around total/periodDays ending on today.
func BuildTrend(records []usage.Record, periodDays int, today time.Time) usage.Trend {
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}
	periodDays = min(periodDays, MaxPeriodDays)
	var latest time.Time
	for _, r := range records {
		if r.Day.After(latest) {
			latest = r.Day
		}
	}
	if latest.IsZero() {
		return synthesizeTrend(records, periodDays, today)
	}

	first := latest.AddDate(0, 0, -(periodDays - 1))
	costs := make(map[string]float64, periodDays)
	for _, r := range records {
		if r.Day.IsZero() || r.Day.Before(first) {
			continue
		}
		costs[r.Day.Format(dayLayout)] += float64(r.Cost)
	}
	points := make([]usage.TrendPoint, periodDays)
	for i := range points {
		day := first.AddDate(0, 0, i).Format(dayLayout)
		points[i] = usage.TrendPoint{Date: day, Cost: usage.Money(costs[day])}
	}
	return usage.Trend{Points: points}
}

// synthesizeTrend spreads the total evenly with bounded jitter. The generator is
// seeded from the record set so equal inputs produce equal series.
func synthesizeTrend(records []usage.Record, periodDays int, today time.Time) usage.Trend {
	var total float64
	h := fnv.New64a()
	for _, r := range records {
		total += float64(r.Cost)
		_, _ = h.Write([]byte(r.ResourceName))
		_, _ = h.Write([]byte{0})
	}
	seed := h.Sum64() ^ math.Float64bits(total)
	rng := rand.New(rand.NewPCG(seed, uint64(len(records))))

	base := total / float64(periodDays)
	y, m, d := today.UTC().Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	points := make([]usage.TrendPoint, periodDays)
	for i := range points {
		factor := 1 + (rng.Float64()*2-1)*trendJitter
		points[i] = usage.TrendPoint{
			Date: end.AddDate(0, 0, i-(periodDays-1)).Format(dayLayout),
			Cost: usage.Money(base * factor),
		}
	}
	return usage.Trend{Points: points, Synthetic: true}
}
