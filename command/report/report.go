package report

import (
	"context"
	"finops-usage/command/app"
	dc "finops-usage/domain/config"
	"finops-usage/domain/usage"
	"finops-usage/refresh"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	lo "github.com/samber/lo"
)

// Options controls what Render prints.
type Options struct {
	Top         int
	ChartWidth  int
	ChartHeight int
}

// Run executes the report command: a terminal summary of the current export
// with a daily cost chart.
func Run(cfg *dc.Config, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	top := fs.Int("top", 5, "number of resources listed per ranking")
	width := fs.Int("width", 60, "chart width")
	height := fs.Int("height", 10, "chart height")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src, closeSrc, err := app.NewSource(cfg)
	if err != nil {
		return err
	}
	if closeSrc != nil {
		defer closeSrc()
	}
	b, err := refresh.New(src, app.NewEngine(cfg)).Bundle(context.Background())
	if err != nil {
		return err
	}
	return Render(os.Stdout, b, Options{Top: *top, ChartWidth: *width, ChartHeight: *height})
}

// Render writes a plain-text report of b to w.
func Render(w io.Writer, b *usage.Bundle, opts Options) error {
	if opts.Top <= 0 {
		opts.Top = 5
	}
	s := b.Summary
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Source\t%s\n", b.Source)
	fmt.Fprintf(tw, "Computed\t%s\n", b.ComputedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(tw, "Total cost\t%s\n", s.TotalCost)
	fmt.Fprintf(tw, "Average daily cost\t%s (%d days)\n", s.AverageDailyCost, s.PeriodDays)
	fmt.Fprintf(tw, "Resources\t%d in %d locations, %d types\n", s.UniqueResources, s.UniqueLocations, s.UniqueResourceTypes)

	fmt.Fprintln(tw, "\nMost expensive\tcost\tshare")
	for _, r := range b.TopExpensive(opts.Top) {
		fmt.Fprintf(tw, "  %s\t%s\t%s%%\n", r.Name, r.Cost, r.Percentage)
	}
	if least := b.TopLeastUsed(opts.Top); len(least) > 0 {
		fmt.Fprintln(tw, "\nLeast used\tusage\tcost")
		for _, r := range least {
			fmt.Fprintf(tw, "  %s\t%g\t%s\n", r.Name, r.UsageQuantity, r.Cost)
		}
	}
	if buckets, _ := b.Breakdown(usage.ByResourceType); len(buckets) > 0 {
		fmt.Fprintln(tw, "\nBy resource type\tcost\tshare")
		for _, bk := range buckets {
			fmt.Fprintf(tw, "  %s\t%s\t%s%%\n", bk.Category, bk.Cost, bk.Percentage)
		}
	}
	if len(b.Recommendations) > 0 {
		total := lo.SumBy(b.Recommendations, func(r usage.Recommendation) float64 { return float64(r.EstimatedSavings) })
		fmt.Fprintf(tw, "\nRecommendations\tsavings\tseverity\n")
		for _, r := range b.Recommendations {
			fmt.Fprintf(tw, "  %s %s\t%s\t%s\n", r.ID, r.Title, r.EstimatedSavings, r.Severity)
		}
		fmt.Fprintf(tw, "  Total\t%s\t\n", usage.Money(total))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if chart := TrendChart(b.Trend, opts.ChartWidth, opts.ChartHeight); chart != "" {
		_, err := fmt.Fprintf(w, "\n%s\n", chart)
		return err
	}
	return nil
}

// TrendChart plots the daily cost series. It returns "" for an empty series.
func TrendChart(t usage.Trend, width, height int) string {
	if len(t.Points) == 0 {
		return ""
	}
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}
	data := lo.Map(t.Points, func(p usage.TrendPoint, _ int) float64 { return float64(p.Cost) })
	caption := fmt.Sprintf("daily cost %s .. %s", t.Points[0].Date, t.Points[len(t.Points)-1].Date)
	if t.Synthetic {
		caption += " (estimated)"
	}
	graph := asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
	return strings.TrimRight(graph, "\n")
}
