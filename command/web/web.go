package web

import (
	"context"
	"errors"
	"finops-usage/analysis"
	"finops-usage/command/app"
	dc "finops-usage/domain/config"
	"finops-usage/domain/usage"
	"finops-usage/refresh"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	lo "github.com/samber/lo"
)

// Run starts the Echo web server exposing the computed usage views as JSON
// and an optional SPA dashboard.
//
// Usage:
//
//	finops-usage web [-addr :8080] [-ui ./ui/dist] [-watch]
//
// Endpoints:
//
//	GET  /api/health
//	GET  /api/usage-report?days=30&resource_type=
//	GET  /api/most-expensive-resources?limit=10
//	GET  /api/most-used-resources?limit=10
//	GET  /api/least-used-resources?limit=10
//	GET  /api/cost-breakdown?by=resource_type|location|service|meter|meter_name
//	GET  /api/recommendations
//	GET  /api/cost-summary
//	GET  /api/trend-analysis?days=30
//	POST /api/refresh-data
//
// When -ui points to a built Vite app (index.html exists), static files are served at / and
// unknown routes fall back to index.html for SPA routing.
func Run(cfg *dc.Config, args []string) error {
	fs := flag.NewFlagSet("web", flag.ContinueOnError)
	addr := fs.String("addr", cfg.Server.Addr, "http listen address (host:port)")
	uiDir := fs.String("ui", cfg.Server.UIDir, "directory containing built UI (Vite dist)")
	watch := fs.Bool("watch", cfg.Source.Watch, "refresh when a local export file changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Source.Watch = *watch

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Watch(ctx); err != nil {
		return err
	}
	// Warm the cache so the first request does not pay for the computation.
	// Failures are logged by the coordinator.
	go func() { _, _ = a.Coordinator.Bundle(ctx) }()

	e := NewServer(a.Coordinator, cfg.Analysis.RankingLimit)
	serveUI(e, *uiDir)
	return e.Start(*addr)
}

// NewServer registers the API routes on a new Echo instance.
func NewServer(coord *refresh.Coordinator, rankingLimit int) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	h := &handlers{coord: coord, rankingLimit: rankingLimit, now: time.Now}

	e.GET("/api/health", h.health)
	e.GET("/api/usage-report", h.usageReport)
	e.GET("/api/most-expensive-resources", h.ranking(func(b *usage.Bundle, n int) []usage.RankedResource { return b.TopExpensive(n) }))
	e.GET("/api/most-used-resources", h.ranking(func(b *usage.Bundle, n int) []usage.RankedResource { return b.TopUsed(n) }))
	e.GET("/api/least-used-resources", h.ranking(func(b *usage.Bundle, n int) []usage.RankedResource { return b.TopLeastUsed(n) }))
	e.GET("/api/cost-breakdown", h.costBreakdown)
	e.GET("/api/recommendations", h.recommendations)
	e.GET("/api/cost-summary", h.costSummary)
	e.GET("/api/trend-analysis", h.trendAnalysis)
	e.POST("/api/refresh-data", h.refreshData)
	return e
}

func serveUI(e *echo.Echo, uiDir string) {
	indexPath := filepath.Join(uiDir, "index.html")
	fi, err := os.Stat(indexPath)
	if err != nil || fi.IsDir() {
		return
	}
	// Serve built assets under /
	e.Static("/", uiDir)
	e.GET("/", func(c echo.Context) error { return c.File(indexPath) })

	// Fallback to index.html for non-API 404s (SPA routing) while keeping static assets working
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if he, ok := err.(*echo.HTTPError); ok && he.Code == http.StatusNotFound {
			if !strings.HasPrefix(c.Request().URL.Path, "/api") {
				_ = c.File(indexPath)
				return
			}
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}

type handlers struct {
	coord        *refresh.Coordinator
	rankingLimit int
	now          func() time.Time
}

// respond merges the bundle's generation and timestamp into body.
func respond(c echo.Context, b *usage.Bundle, body map[string]any) error {
	body["timestamp"] = b.ComputedAt
	body["generation"] = b.Generation
	return c.JSON(http.StatusOK, body)
}

func (h *handlers) bundle(c echo.Context) (*usage.Bundle, error) {
	return h.coord.Bundle(c.Request().Context())
}

func (h *handlers) health(c echo.Context) error {
	body := map[string]any{
		"status":    "healthy",
		"state":     h.coord.State().String(),
		"timestamp": h.now().UTC(),
	}
	// Degraded until a bundle has been computed successfully.
	if b := h.coord.Current(); b != nil {
		body["generation"] = b.Generation
		body["computed_at"] = b.ComputedAt
	} else {
		body["status"] = "degraded"
	}
	if err := h.coord.LastError(); err != nil {
		body["last_error"] = err.Error()
	}
	return c.JSON(http.StatusOK, body)
}

func (h *handlers) usageReport(c echo.Context) error {
	b, err := h.bundle(c)
	if err != nil {
		return fail(c, err)
	}
	days, err := daysParam(c, b.Summary.PeriodDays)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	report := analysis.Report(b.Records, days, c.QueryParam("resource_type"))
	return respond(c, b, map[string]any{"report": report})
}

func (h *handlers) ranking(top func(*usage.Bundle, int) []usage.RankedResource) echo.HandlerFunc {
	return func(c echo.Context) error {
		b, err := h.bundle(c)
		if err != nil {
			return fail(c, err)
		}
		limit := intParam(c, "limit", h.rankingLimit)
		resources := top(b, limit)
		return respond(c, b, map[string]any{"resources": resources, "count": len(resources)})
	}
}

func (h *handlers) costBreakdown(c echo.Context) error {
	b, err := h.bundle(c)
	if err != nil {
		return fail(c, err)
	}
	d := analysis.ParseDimension(c.QueryParam("by"))
	buckets, _ := b.Breakdown(d)
	return respond(c, b, map[string]any{"breakdown_by": d, "breakdown": buckets})
}

func (h *handlers) recommendations(c echo.Context) error {
	b, err := h.bundle(c)
	if err != nil {
		return fail(c, err)
	}
	total := lo.SumBy(b.Recommendations, func(r usage.Recommendation) float64 { return float64(r.EstimatedSavings) })
	return respond(c, b, map[string]any{
		"recommendations":         b.Recommendations,
		"count":                   len(b.Recommendations),
		"total_potential_savings": usage.Money(total),
	})
}

func (h *handlers) costSummary(c echo.Context) error {
	b, err := h.bundle(c)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, b, map[string]any{"summary": b.Summary})
}

func (h *handlers) trendAnalysis(c echo.Context) error {
	b, err := h.bundle(c)
	if err != nil {
		return fail(c, err)
	}
	days, err := daysParam(c, b.Summary.PeriodDays)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	t := analysis.TrendFor(b, days, h.now())
	return respond(c, b, map[string]any{"trends": t.Points, "synthetic": t.Synthetic, "period_days": days})
}

func (h *handlers) refreshData(c echo.Context) error {
	b, err := h.coord.Refresh(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return respond(c, b, map[string]any{
		"message": "Data refreshed successfully",
		"records": len(b.Records),
	})
}

// fail maps pipeline errors to HTTP statuses.
func fail(c echo.Context, err error) error {
	var (
		ie *usage.IngestionError
		ce *usage.ComputationError
	)
	switch {
	case errors.Is(err, usage.ErrEmptyDataset):
		return c.JSON(http.StatusNotFound, map[string]any{"error": "No usage data available", "message": err.Error()})
	case errors.As(err, &ie):
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"error": "usage source unavailable", "message": err.Error()})
	case errors.As(err, &ce):
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "computation failed", "message": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"error": "request cancelled", "message": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}
}

// daysParam reads the days window, rejecting values above analysis.MaxPeriodDays.
func daysParam(c echo.Context, def int) (int, error) {
	days := intParam(c, "days", def)
	if days > analysis.MaxPeriodDays {
		return 0, fmt.Errorf("days must be at most %d", analysis.MaxPeriodDays)
	}
	return days, nil
}

// intParam reads a positive integer query parameter, falling back to def.
func intParam(c echo.Context, name string, def int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
