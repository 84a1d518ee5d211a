package csv

import (
	"encoding/csv"
	"finops-usage/domain/usage"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// WriteAllCSVs writes every computed view of b into dir.
func WriteAllCSVs(dir string, b *usage.Bundle) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := WriteSummaryCSV(filepath.Join(dir, "cost_summary.csv"), b); err != nil {
		return err
	}
	for _, d := range usage.Dimensions {
		buckets, _ := b.Breakdown(d)
		if err := WriteBreakdownCSV(filepath.Join(dir, fmt.Sprintf("cost_breakdown_%s.csv", d)), buckets); err != nil {
			return err
		}
	}
	if err := WriteRankingCSV(filepath.Join(dir, "most_expensive_resources.csv"), b.MostExpensive); err != nil {
		return err
	}
	if err := WriteRankingCSV(filepath.Join(dir, "most_used_resources.csv"), b.MostUsed); err != nil {
		return err
	}
	if err := WriteRankingCSV(filepath.Join(dir, "least_used_resources.csv"), b.LeastUsed); err != nil {
		return err
	}
	if err := WriteTrendCSV(filepath.Join(dir, "trend.csv"), b.Trend); err != nil {
		return err
	}
	if err := WriteRecommendationCSV(filepath.Join(dir, "recommendations.csv"), b.Recommendations); err != nil {
		return err
	}
	return nil
}

func WriteSummaryCSV(path string, b *usage.Bundle) error {
	s := b.Summary
	return writeFile(path, []string{"generation", "computed_at", "total_cost", "total_usage", "resource_count", "data_points", "average_daily_cost", "average_cost_per_resource", "unique_resources", "unique_locations", "unique_resource_types", "period_days"}, [][]string{{
		b.Generation,
		b.ComputedAt.UTC().Format(time.RFC3339),
		s.TotalCost.String(),
		formatFloat(s.TotalUsage),
		strconv.Itoa(s.ResourceCount),
		strconv.Itoa(s.DataPoints),
		s.AverageDailyCost.String(),
		s.AverageCostPerResource.String(),
		strconv.Itoa(s.UniqueResources),
		strconv.Itoa(s.UniqueLocations),
		strconv.Itoa(s.UniqueResourceTypes),
		strconv.Itoa(s.PeriodDays),
	}})
}

func WriteBreakdownCSV(path string, buckets []usage.Bucket) error {
	rows := make([][]string, 0, len(buckets))
	for _, bk := range buckets {
		rows = append(rows, []string{bk.Category, bk.Cost.String(), formatFloat(bk.UsageQuantity), bk.Percentage.String()})
	}
	return writeFile(path, []string{"category", "cost", "usage_quantity", "percentage"}, rows)
}

func WriteRankingCSV(path string, ranked []usage.RankedResource) error {
	rows := make([][]string, 0, len(ranked))
	for i, r := range ranked {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			r.Name,
			r.ResourceID,
			r.ResourceType,
			r.Location,
			r.MeterCategory,
			r.Cost.String(),
			formatFloat(r.UsageQuantity),
			r.Percentage.String(),
			r.CostPerUnit.String(),
		})
	}
	return writeFile(path, []string{"rank", "name", "resource_id", "resource_type", "location", "meter_category", "cost", "usage_quantity", "percentage", "cost_per_unit"}, rows)
}

func WriteTrendCSV(path string, t usage.Trend) error {
	rows := make([][]string, 0, len(t.Points))
	for _, p := range t.Points {
		rows = append(rows, []string{p.Date, p.Cost.String(), strconv.FormatBool(t.Synthetic)})
	}
	return writeFile(path, []string{"date", "cost", "synthetic"}, rows)
}

// WriteRecommendationCSV writes one row per recommendation; details are not exported.
func WriteRecommendationCSV(path string, recs []usage.Recommendation) error {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{r.ID, string(r.Severity), r.Title, r.Description, r.EstimatedSavings.String(), strconv.Itoa(len(r.Details))})
	}
	return writeFile(path, []string{"id", "severity", "title", "description", "estimated_savings", "detail_count"}, rows)
}

func writeFile(path string, headers []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
