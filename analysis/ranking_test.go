package analysis

import (
	"cmp"
	"finops-usage/domain/usage"
	"slices"
	"testing"
)

func TestLeastUsedThreshold(t *testing.T) {
	recs := []usage.Record{
		rec("a", "t", "x", 0.5, 1),
		rec("b", "t", "x", 10000, 1),
		rec("c", "t", "x", 50, 1),
	}
	r := Rank(recs, 10050.5, DefaultOptions())
	got := make([]float64, 0, len(r.LeastUsed))
	for _, e := range r.LeastUsed {
		got = append(got, e.UsageQuantity)
	}
	if !slices.Equal(got, []float64{0.5, 50}) {
		t.Fatalf("least used = %v, want [0.5 50]", got)
	}
}

func TestRankingOrders(t *testing.T) {
	recs := []usage.Record{
		rec("b", "t", "x", 10, 2),
		rec("a", "t", "x", 20, 1),
		rec("c", "t", "x", 5, 10),
	}
	r := Rank(recs, 90, DefaultOptions())

	names := func(rs []usage.RankedResource) []string {
		out := make([]string, len(rs))
		for i, e := range rs {
			out[i] = e.Name
		}
		return out
	}
	if got := names(r.MostExpensive); !slices.Equal(got, []string{"c", "a", "b"}) {
		t.Fatalf("most expensive = %v", got)
	}
	if got := names(r.MostUsed); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("most used = %v", got)
	}
	if !slices.IsSortedFunc(r.MostExpensive, func(x, y usage.RankedResource) int {
		return cmp.Compare(y.Cost, x.Cost)
	}) {
		t.Fatal("most expensive is not sorted")
	}
	if r.MostExpensive[0].CostPerUnit != 10 || r.MostExpensive[0].Percentage.String() != "55.56" {
		t.Fatalf("unexpected derived figures: %+v", r.MostExpensive[0])
	}
}

func TestRankCollapsesByName(t *testing.T) {
	recs := []usage.Record{
		rec("vm1", "Virtual Machine", "eastus", 24, 1),
		rec("vm1", "Virtual Machine", "eastus", 24, 1),
		rec("vm2", "Virtual Machine", "eastus", 10, 1),
	}
	r := Rank(recs, 58, DefaultOptions())
	if len(r.MostExpensive) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(r.MostExpensive))
	}
	if r.MostExpensive[0].Name != "vm1" || r.MostExpensive[0].Cost != 48 || r.MostExpensive[0].UsageQuantity != 48 {
		t.Fatalf("rows should be summed per resource: %+v", r.MostExpensive[0])
	}
}

func TestRankTiesByName(t *testing.T) {
	recs := []usage.Record{rec("z", "t", "x", 1, 1), rec("m", "t", "x", 1, 1), rec("a", "t", "x", 1, 1)}
	r := Rank(recs, 3, DefaultOptions())
	for _, list := range [][]usage.RankedResource{r.MostExpensive, r.MostUsed, r.LeastUsed} {
		if list[0].Name != "a" || list[2].Name != "z" {
			t.Fatalf("ties should break by name: %v", list)
		}
	}
}

func TestFoldCaseKeepsResourceNamesExact(t *testing.T) {
	recs := []usage.Record{
		rec("VM1", "Virtual Machine", "EastUS", 10, 1),
		rec("vm1", "Virtual Machine", "eastus", 10, 1),
	}
	opts := DefaultOptions()
	opts.FoldCase = true
	if r := Rank(recs, 20, opts); len(r.MostExpensive) != 2 {
		t.Fatalf("differently cased names are distinct resources, got %d", len(r.MostExpensive))
	}
	s := Summarize(recs, 30, true)
	if s.UniqueResources != 2 || s.UniqueLocations != 1 {
		t.Fatalf("unique resources = %d, locations = %d", s.UniqueResources, s.UniqueLocations)
	}
}
