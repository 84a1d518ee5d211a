package analysis

import (
	"finops-usage/domain/usage"
	"strings"
	"time"

	lo "github.com/samber/lo"
)

// UsageReport is an on-demand summary over a filtered slice of a bundle's records.
type UsageReport struct {
	TotalCost              usage.Money `json:"total_cost"`
	TotalUsage             float64     `json:"total_usage"`
	ResourceCount          int         `json:"resource_count"`
	AverageCostPerResource usage.Money `json:"average_cost_per_resource"`
	PeriodDays             int         `json:"period_days"`
	ResourceType           string      `json:"resource_type,omitempty"`
}

// Report summarizes records whose resource type contains resourceType
// (case-insensitive; empty matches all).
func Report(records []usage.Record, days int, resourceType string) UsageReport {
	if days <= 0 {
		days = DefaultPeriodDays
	}
	needle := strings.ToLower(strings.TrimSpace(resourceType))
	matched := lo.Filter(records, func(r usage.Record, _ int) bool {
		return needle == "" || strings.Contains(strings.ToLower(r.ResourceType), needle)
	})
	s := Summarize(matched, days, false)
	return UsageReport{
		TotalCost:              s.TotalCost,
		TotalUsage:             s.TotalUsage,
		ResourceCount:          s.ResourceCount,
		AverageCostPerResource: s.AverageCostPerResource,
		PeriodDays:             days,
		ResourceType:           resourceType,
	}
}

// TrendFor recomputes the trend of a bundle over a different window. The
// bundle's own series is returned when days matches its period. Windows longer
// than MaxPeriodDays are shortened to it.
func TrendFor(b *usage.Bundle, days int, today time.Time) usage.Trend {
	days = min(days, MaxPeriodDays)
	if days <= 0 || days == b.Summary.PeriodDays {
		return b.Trend
	}
	return BuildTrend(b.Records, days, today)
}
