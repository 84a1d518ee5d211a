package analysis

import (
	"finops-usage/domain/usage"
	"math"
	"testing"
	"time"
)

var today = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func rec(name, typ, loc string, qty, price float64) usage.Record {
	return usage.Record{
		ResourceName:  name,
		ResourceType:  typ,
		Location:      loc,
		MeterCategory: typ,
		MeterName:     usage.UnknownValue,
		Quantity:      qty,
		UnitPrice:     price,
		Cost:          usage.Money(qty * price),
	}
}

func sample() []usage.Record {
	return []usage.Record{
		rec("vm1", "Virtual Machine", "eastus", 730, 0.62),
		rec("sa1", "Storage Account", "eastus", 5000, 0.03),
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample(), 30, false)
	if s.TotalCost.String() != "602.60" {
		t.Fatalf("total_cost = %s, want 602.60", s.TotalCost)
	}
	if s.TotalUsage != 5730 || s.ResourceCount != 2 || s.UniqueLocations != 1 || s.UniqueResourceTypes != 2 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.AverageDailyCost.String() != "20.09" {
		t.Fatalf("average_daily_cost = %s, want 20.09", s.AverageDailyCost)
	}
	if s.AverageCostPerResource.String() != "301.30" {
		t.Fatalf("average_cost_per_resource = %s", s.AverageCostPerResource)
	}
}

func TestBreakdownPercentages(t *testing.T) {
	recs := sample()
	total := float64(Summarize(recs, 30, false).TotalCost)
	buckets := Breakdown(recs, usage.ByResourceType, total, false)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	if buckets[0].Category != "Virtual Machine" || buckets[0].Percentage.String() != "75.11" {
		t.Fatalf("first bucket: %+v", buckets[0])
	}
	if buckets[1].Category != "Storage Account" || buckets[1].Percentage.String() != "24.89" {
		t.Fatalf("second bucket: %+v", buckets[1])
	}
	var cost, pct float64
	for _, b := range buckets {
		cost += float64(b.Cost)
		pct += float64(b.Percentage)
	}
	if math.Abs(cost-total) > 1e-9 || math.Abs(pct-100) > 0.01 {
		t.Fatalf("buckets should partition the total: cost=%v pct=%v", cost, pct)
	}
}

func TestBreakdownZeroTotal(t *testing.T) {
	recs := []usage.Record{rec("a", "t", "eastus", 0, 0), rec("b", "u", "eastus", 0, 0)}
	for _, b := range Breakdown(recs, usage.ByResourceType, 0, false) {
		if b.Percentage != 0 {
			t.Fatalf("percentage should be 0 when total is 0, got %v", b.Percentage)
		}
	}
}

func TestBreakdownFoldCase(t *testing.T) {
	recs := []usage.Record{
		rec("a", "t", "EastUS", 1, 1),
		rec("b", "t", "eastus ", 1, 1),
		rec("c", "t", "westus", 1, 5),
	}
	if got := len(Breakdown(recs, usage.ByLocation, 7, false)); got != 3 {
		t.Fatalf("exact grouping should keep 3 locations, got %d", got)
	}
	folded := Breakdown(recs, usage.ByLocation, 7, true)
	if len(folded) != 2 {
		t.Fatalf("folded grouping should merge to 2 locations, got %d", len(folded))
	}
	if folded[1].Category != "EastUS" || folded[1].Cost != 2 {
		t.Fatalf("first spelling should label the merged bucket: %+v", folded[1])
	}
}

func TestBreakdownTiesByCategory(t *testing.T) {
	recs := []usage.Record{rec("a", "zeta", "x", 1, 1), rec("b", "alpha", "x", 1, 1)}
	buckets := Breakdown(recs, usage.ByResourceType, 2, false)
	if buckets[0].Category != "alpha" {
		t.Fatalf("equal costs should order by category, got %v", buckets)
	}
}

func TestAggregateHasEveryDimension(t *testing.T) {
	agg := Aggregate(sample(), DefaultOptions(), today)
	for _, d := range usage.Dimensions {
		if _, ok := agg.Breakdowns[d]; !ok {
			t.Errorf("missing breakdown %s", d)
		}
	}
	if len(agg.Trend.Points) != DefaultPeriodDays {
		t.Fatalf("trend should have %d points, got %d", DefaultPeriodDays, len(agg.Trend.Points))
	}
}

func TestParseDimension(t *testing.T) {
	tests := map[string]usage.Dimension{
		"location":   usage.ByLocation,
		" Service ":  usage.ByService,
		"meter":      usage.ByMeter,
		"meter_name": usage.ByMeterName,
		"":           usage.ByResourceType,
		"bogus":      usage.ByResourceType,
	}
	for in, want := range tests {
		if got := ParseDimension(in); got != want {
			t.Errorf("ParseDimension(%q) = %s, want %s", in, got, want)
		}
	}
}
