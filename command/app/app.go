// Package app wires configuration into the data source, the analysis engine
// and the refresh coordinator shared by the subcommands.
package app

import (
	"context"
	"finops-usage/analysis"
	"finops-usage/connectors/azure"
	"finops-usage/connectors/file"
	dc "finops-usage/domain/config"
	"finops-usage/recommend"
	"finops-usage/refresh"
	"fmt"
	"log/slog"
)

// App holds the long-lived components built from a Config.
type App struct {
	Config      *dc.Config
	Source      refresh.Source
	Engine      *analysis.Engine
	Coordinator *refresh.Coordinator

	closers []func()
}

// New builds an App from cfg.
func New(cfg *dc.Config) (*App, error) {
	src, closeSrc, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}
	engine := NewEngine(cfg)
	a := &App{
		Config:      cfg,
		Source:      src,
		Engine:      engine,
		Coordinator: refresh.New(src, engine,
			refresh.WithTTL(cfg.Cache.TTL),
			refresh.WithRetryInterval(cfg.Cache.RetryInterval),
			refresh.WithFetchTimeout(cfg.Cache.FetchTimeout),
		),
	}
	if closeSrc != nil {
		a.closers = append(a.closers, closeSrc)
	}
	slog.Info("app.ready", "source", src.Name(), "ttl", cfg.Cache.TTL, "period_days", cfg.Analysis.PeriodDays)
	return a, nil
}

// NewEngine builds the analysis engine with the configured recommendation policy.
func NewEngine(cfg *dc.Config) *analysis.Engine {
	opts := analysis.Options{
		PeriodDays:         cfg.Analysis.PeriodDays,
		FoldCase:           !cfg.Analysis.CaseSensitiveGrouping,
		LeastUsedThreshold: cfg.Analysis.LeastUsedThreshold,
	}
	return analysis.NewEngine(opts, recommend.New(cfg.Recommend))
}

// NewSource returns the configured export source and an optional release func.
func NewSource(cfg *dc.Config) (refresh.Source, func(), error) {
	switch cfg.Source.Kind {
	case dc.SourceAzureBlob:
		c, err := azure.NewClient(azure.Config{
			AccountName:  cfg.Azure.AccountName,
			Container:    cfg.Azure.Container,
			Prefix:       cfg.Azure.Prefix,
			TenantID:     cfg.Azure.TenantID,
			ClientID:     cfg.Azure.ClientID,
			ClientSecret: cfg.Azure.ClientSecret,
			SASToken:     cfg.Azure.SASToken,
			Endpoint:     cfg.Azure.Endpoint,
			CacheBytes:   cfg.Cache.BlobCacheMB << 20,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case dc.SourceFile, "":
		return file.NewSource(cfg.Source.Path), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// Watch triggers a refresh whenever a file source changes. It is a no-op for
// other sources or when watching is disabled.
func (a *App) Watch(ctx context.Context) error {
	fs, ok := a.Source.(*file.Source)
	if !ok || !a.Config.Source.Watch {
		return nil
	}
	return fs.Watch(ctx, a.Config.Source.Debounce, func() {
		if _, err := a.Coordinator.Refresh(ctx); err != nil {
			slog.Warn("app.watch.refresh.failed", "error", err)
		}
	})
}

// Close releases source resources.
func (a *App) Close() {
	for _, c := range a.closers {
		c()
	}
}
