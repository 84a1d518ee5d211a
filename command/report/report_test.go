package report

import (
	"bytes"
	"finops-usage/analysis"
	"finops-usage/domain/usage"
	"finops-usage/recommend"
	"strings"
	"testing"
	"time"
)

func bundle(t *testing.T) *usage.Bundle {
	t.Helper()
	rows := []map[string]string{
		{"ResourceName": "vm1", "ResourceType": "Virtual Machine", "Location": "eastus", "UsageQuantity": "730", "UnitPrice": "0.62", "Date": "2024-06-01"},
		{"ResourceName": "sa1", "ResourceType": "Storage Account", "Location": "eastus", "UsageQuantity": "0.5", "UnitPrice": "2", "Date": "2024-06-02"},
	}
	engine := analysis.NewEngine(analysis.Options{PeriodDays: 7}, recommend.New(recommend.DefaultPolicy()))
	b, err := engine.Compute(rows, "test")
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, bundle(t), Options{Top: 3, ChartWidth: 30, ChartHeight: 5}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Total cost", "453.60", "vm1", "Least used", "sa1", "daily cost 2024-05-27 .. 2024-06-02"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestTrendChartEmpty(t *testing.T) {
	if got := TrendChart(usage.Trend{}, 40, 5); got != "" {
		t.Fatalf("expected empty chart, got %q", got)
	}
}

func TestTrendChartSyntheticCaption(t *testing.T) {
	tr := analysis.BuildTrend([]usage.Record{{ResourceName: "a", Location: "x", Cost: 30}}, 5, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	if !strings.Contains(TrendChart(tr, 40, 5), "(estimated)") {
		t.Fatal("synthetic series should be captioned as estimated")
	}
}
