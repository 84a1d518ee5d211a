package cmdimport

import (
	"context"
	"finops-usage/command/app"
	ccsv "finops-usage/connectors/csv"
	dc "finops-usage/domain/config"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Run executes the import subcommand: it copies the latest usage export from
// the configured source (normally Azure Blob Storage) into a local CSV file.
func Run(cfg *dc.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	out := fs.String("out", filepath.Join(cfg.Server.DataDir, "usage.csv"), "destination CSV file")
	prefix := fs.String("prefix", cfg.Azure.Prefix, "only consider blobs under this prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Azure.Prefix = *prefix
	if cfg.Source.Kind == dc.SourceFile && filepath.Clean(cfg.Source.Path) == filepath.Clean(*out) {
		return fmt.Errorf("source and destination are the same file: %s", *out)
	}

	src, closeSrc, err := app.NewSource(cfg)
	if err != nil {
		return err
	}
	if closeSrc != nil {
		defer closeSrc()
	}

	slog.Info("import.start", "source", src.Name(), "out", *out)
	n, err := Import(context.Background(), src, *out)
	if err != nil {
		slog.Error("import.error", "source", src.Name(), "error", err)
		return err
	}
	slog.Info("import.done", "source", src.Name(), "out", *out, "rows", n)
	return nil
}

// Fetcher is the subset of a usage source import needs.
type Fetcher interface {
	Fetch(ctx context.Context) (io.ReadCloser, error)
}

// Import downloads the current export to path and returns its data row count.
// The file is written to a temporary sibling and renamed into place, so readers
// never observe a partial export.
func Import(ctx context.Context, src Fetcher, path string) (int, error) {
	rc, err := src.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch export: %w", err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".import-*.csv")
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}

	rows, err := ccsv.ReadFile(tmp.Name())
	if err != nil {
		return 0, fmt.Errorf("downloaded export is not valid csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("failed to move export into place: %w", err)
	}
	return len(rows), nil
}
