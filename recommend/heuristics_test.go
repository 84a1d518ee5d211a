package recommend

import (
	"finops-usage/analysis"
	"finops-usage/domain/usage"
	"math"
	"reflect"
	"testing"
	"time"
)

func record(name, typ, loc, meter string, qty, price float64) usage.Record {
	return usage.Record{
		ResourceName:  name,
		ResourceType:  typ,
		Location:      loc,
		MeterCategory: typ,
		MeterName:     meter,
		Quantity:      qty,
		UnitPrice:     price,
		Cost:          usage.Money(qty * price),
	}
}

func input(records ...usage.Record) Input {
	opts := analysis.DefaultOptions()
	agg := analysis.Aggregate(records, opts, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))
	return Input{
		Records:    records,
		Aggregates: agg,
		Rankings:   analysis.Rank(records, float64(agg.Summary.TotalCost), opts),
	}
}

func near(a usage.Money, b float64) bool { return math.Abs(float64(a)-b) < 1e-6 }

func TestUnusedResources(t *testing.T) {
	in := input(
		record("idle-disk", "Disk", "eastus", "", 0.5, 40),
		record("idle-vm", "Virtual Machine", "eastus", "", 1, 10),
		record("busy", "Virtual Machine", "eastus", "", 50, 1),
	)
	r, ok := UnusedResources(in, DefaultPolicy())
	if !ok {
		t.Fatal("expected a recommendation")
	}
	if r.Severity != usage.SeverityHigh || !near(r.EstimatedSavings, 30) {
		t.Fatalf("unexpected recommendation: %+v", r)
	}
	if len(r.Details) != 2 || r.Details[0]["resource"] != "idle-disk" || r.Details[0]["action"] != "Delete" || r.Details[1]["action"] != "Stop" {
		t.Fatalf("unexpected details: %v", r.Details)
	}
	if _, ok := UnusedResources(input(record("busy", "Disk", "eastus", "", 50, 1)), DefaultPolicy()); ok {
		t.Fatal("no resource is unused")
	}
}

func TestLocationConsolidation(t *testing.T) {
	in := input(
		record("a", "Disk", "westeurope", "", 100, 2),
		record("b", "Disk", "eastus", "", 100, 1),
	)
	r, ok := LocationConsolidation(in, DefaultPolicy())
	if !ok {
		t.Fatal("expected a recommendation")
	}
	if !near(r.EstimatedSavings, 20) || r.Details[0]["to"] != "eastus" || r.Details[0]["from"] != "westeurope" {
		t.Fatalf("unexpected recommendation: %+v", r)
	}
	if _, ok := LocationConsolidation(input(record("a", "Disk", "eastus", "", 10, 1)), DefaultPolicy()); ok {
		t.Fatal("a single location cannot be consolidated")
	}
	even := input(record("a", "Disk", "westeurope", "", 100, 1.2), record("b", "Disk", "eastus", "", 100, 1))
	if _, ok := LocationConsolidation(even, DefaultPolicy()); ok {
		t.Fatal("spread below threshold should not trigger")
	}
}

func TestReservedInstances(t *testing.T) {
	in := input(
		record("vm1", "Virtual Machine", "eastus", "", 730, 0.62),
		record("vm2", "Virtual Machine", "eastus", "", 10, 1),
		record("sa", "Storage", "eastus", "", 1000, 1),
	)
	r, ok := ReservedInstances(in, DefaultPolicy())
	if !ok {
		t.Fatal("expected a recommendation")
	}
	if !near(r.EstimatedSavings, 452.6*0.30) || len(r.Details) != 1 || r.Details[0]["resources"] != 1 {
		t.Fatalf("unexpected recommendation: %+v", r)
	}
}

func TestRightsizing(t *testing.T) {
	idle := input(record("vm1", "Virtual Machine", "eastus", "", 100, 2))
	r, ok := Rightsizing(idle, DefaultPolicy())
	if !ok || !near(r.EstimatedSavings, 20) {
		t.Fatalf("low utilization should trigger: %+v %v", r, ok)
	}
	busy := input(record("vm1", "Virtual Machine", "eastus", "", 720, 2))
	if _, ok := Rightsizing(busy, DefaultPolicy()); ok {
		t.Fatal("fully used machine should not be right-sized")
	}
}

func TestHybridSpotStorage(t *testing.T) {
	in := input(
		record("vm1", "Virtual Machine", "eastus", "D2 Windows", 100, 1),
		record("db", "SQL Database", "eastus", "SQL vCore", 50, 1),
		record("sa", "Storage Account", "eastus", "Hot LRS", 200, 1),
	)
	p := DefaultPolicy()
	h, ok := HybridBenefit(in, p)
	if !ok || !near(h.EstimatedSavings, 150*0.40) || len(h.Details) != 2 {
		t.Fatalf("hybrid benefit: %+v", h)
	}
	s, ok := SpotInstances(in, p)
	if !ok || !near(s.EstimatedSavings, 100*0.30*0.70) || s.Severity != usage.SeverityLow {
		t.Fatalf("spot: %+v", s)
	}
	st, ok := StorageTiering(in, p)
	if !ok || !near(st.EstimatedSavings, 200*0.15) {
		t.Fatalf("storage: %+v", st)
	}
}

func TestRecommendIsDeterministicAndSorted(t *testing.T) {
	in := input(
		record("vm1", "Virtual Machine", "westeurope", "D2 Windows", 730, 0.62),
		record("idle", "Disk", "eastus", "", 0.2, 5),
		record("sa", "Storage Account", "eastus", "Hot LRS", 5000, 0.03),
	)
	e := New(DefaultPolicy())
	a := e.Recommend(in.Records, in.Aggregates, in.Rankings)
	b := e.Recommend(in.Records, in.Aggregates, in.Rankings)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("recommendations must be deterministic")
	}
	for i := 1; i < len(a); i++ {
		prev, cur := a[i-1], a[i]
		if prev.Severity.Rank() > cur.Severity.Rank() || (prev.Severity == cur.Severity && prev.ID > cur.ID) {
			t.Fatalf("not sorted at %d: %s/%s then %s/%s", i, prev.ID, prev.Severity, cur.ID, cur.Severity)
		}
	}
	for _, r := range a {
		if r.EstimatedSavings < 0 {
			t.Fatalf("%s has negative savings", r.ID)
		}
	}
}

func TestRecommendEmptyInput(t *testing.T) {
	if got := New(DefaultPolicy()).Recommend(nil, usage.Aggregates{}, usage.Rankings{}); len(got) != 0 {
		t.Fatalf("expected no recommendations, got %v", got)
	}
}

func TestRegister(t *testing.T) {
	e := &Engine{policy: DefaultPolicy()}
	e.Register(Heuristic{ID: "X", Apply: func(Input, Policy) (usage.Recommendation, bool) {
		return usage.Recommendation{ID: "X", Severity: usage.SeverityLow}, true
	}})
	got := e.Recommend(nil, usage.Aggregates{}, usage.Rankings{})
	if len(got) != 1 || got[0].ID != "X" {
		t.Fatalf("registered heuristic not evaluated: %v", got)
	}
}
