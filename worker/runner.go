package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/VivekMangukiya11/donizo-material-scraper/config"
	"github.com/VivekMangukiya11/donizo-material-scraper/models"
	"github.com/VivekMangukiya11/donizo-material-scraper/output"
	"github.com/VivekMangukiya11/donizo-material-scraper/process"
	"github.com/VivekMangukiya11/donizo-material-scraper/report"
	"github.com/VivekMangukiya11/donizo-material-scraper/scraper"
)

// Runner orchestrates one scraping run: a goroutine per enabled
// supplier, results collected over a channel, then consolidation,
// cross-supplier dedup, dataset persistence and the run report.
type Runner struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *scraper.Metrics
}

// NewRunner builds a runner. The logger is a required collaborator,
// passed down to every worker; there is no ambient global state.
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		logger:  logger,
		metrics: scraper.NewMetrics(),
	}
}

// Metrics exposes the run's Prometheus registry holder.
func (r *Runner) Metrics() *scraper.Metrics {
	return r.metrics
}

// RunOutcome bundles everything a finished run produced.
type RunOutcome struct {
	Report       *report.Report
	Dataset      *models.ConsolidatedDataset
	Products     []*models.Product
	Consolidated string // path of the consolidated file, "" if the save failed
	ReportPath   string
}

// Run executes the full run. Only output setup failure aborts; supplier
// and record failures are recorded in the report and the run completes.
func (r *Runner) Run(ctx context.Context, sessionID string) (*RunOutcome, error) {
	stats := report.NewStats()

	store, err := output.NewManager(r.cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("output setup: %w", err)
	}
	processor := process.NewProcessor(r.cfg.Processing)

	suppliers := r.cfg.EnabledSuppliers()
	results := make(chan Result, len(suppliers))
	launched := 0
	for _, supplier := range suppliers {
		sc, err := scraper.New(supplier, r.cfg.HTTP, r.logger, r.metrics)
		if err != nil {
			stats.AddErrors(models.ScrapeError{
				Supplier: supplier.Name,
				Error:    fmt.Sprintf("scraper setup: %v", err),
			})
			continue
		}
		w := New(supplier.Name, r.cfg.Categories, sc, processor, store, r.logger)
		launched++
		go func() {
			results <- w.Run(ctx, sessionID)
		}()
	}

	bySupplier := make(map[string][]*models.Product, launched)
	var all []*models.Product
	for i := 0; i < launched; i++ {
		res := <-results
		stats.AddErrors(res.Errors...)
		if res.Err != nil {
			r.logger.Error("supplier failed",
				slog.String("supplier", res.Supplier),
				slog.Any("error", res.Err),
			)
			stats.AddErrors(models.ScrapeError{
				Supplier: res.Supplier,
				Error:    res.Err.Error(),
			})
			continue
		}
		bySupplier[res.Supplier] = res.Products
		stats.RecordSupplier(res.Supplier, res.Products)
		all = append(all, res.Products...)
	}

	all = process.Dedupe(all)
	stats.Finalize(len(all))

	outcome := &RunOutcome{
		Dataset:  report.Consolidate(bySupplier),
		Products: all,
	}

	if path, err := store.SaveConsolidated(outcome.Dataset, sessionID); err != nil {
		r.logger.Error("saving consolidated dataset failed", slog.Any("error", err))
		stats.AddErrors(models.ScrapeError{Supplier: "consolidation", Error: err.Error()})
	} else {
		outcome.Consolidated = path
		r.logger.Info("consolidated dataset saved", slog.String("path", path))
	}

	if err := store.SaveMaterials(all, r.cfg.API.DatasetFile); err != nil {
		r.logger.Error("saving materials dataset failed", slog.Any("error", err))
		stats.AddErrors(models.ScrapeError{Supplier: "consolidation", Error: err.Error()})
	}

	outcome.Report = report.BuildReport(stats)
	if path, err := store.SaveReport(outcome.Report, sessionID); err != nil {
		r.logger.Error("saving report failed", slog.Any("error", err))
	} else {
		outcome.ReportPath = path
	}

	return outcome, nil
}
