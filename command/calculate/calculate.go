package calculate

import (
	"context"
	"finops-usage/command/app"
	ccsv "finops-usage/connectors/csv"
	dc "finops-usage/domain/config"
	"finops-usage/domain/usage"
	"finops-usage/refresh"
	"flag"
	"fmt"
	"log/slog"
	"os"
)

// Run executes the calculate command: it computes every view from the current
// export and writes them as CSV files into the data directory.
func Run(cfg *dc.Config, args []string) error {
	fs := flag.NewFlagSet("calculate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	out := fs.String("out", cfg.Server.DataDir, "directory receiving the computed CSV files")
	days := fs.Int("days", cfg.Analysis.PeriodDays, "averaging period in days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Analysis.PeriodDays = *days

	src, closeSrc, err := app.NewSource(cfg)
	if err != nil {
		return err
	}
	if closeSrc != nil {
		defer closeSrc()
	}

	b, err := Calculate(context.Background(), refresh.New(src, app.NewEngine(cfg)), *out)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "computed %d records from %s: total cost %s, %d recommendations\n",
		len(b.Records), b.Source, b.Summary.TotalCost, len(b.Recommendations))
	return nil
}

// Calculate refreshes coord once and writes the resulting bundle into dir.
func Calculate(ctx context.Context, coord *refresh.Coordinator, dir string) (*usage.Bundle, error) {
	b, err := coord.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if err := ccsv.WriteAllCSVs(dir, b); err != nil {
		return nil, fmt.Errorf("failed to write csv outputs: %w", err)
	}
	slog.Info("calculate.done", "generation", b.Generation, "dir", dir, "records", len(b.Records))
	return b, nil
}
