// Package worker runs one isolated scraping unit per supplier and
// fans their results back into a single consolidated run. Workers share
// no mutable state: each owns its in-memory product list and its
// session files, and communicates only by sending a completed Result.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/VivekMangukiya11/donizo-material-scraper/models"
	"github.com/VivekMangukiya11/donizo-material-scraper/output"
	"github.com/VivekMangukiya11/donizo-material-scraper/process"
	"github.com/VivekMangukiya11/donizo-material-scraper/scraper"
)

// Result is the completed output of one supplier worker.
type Result struct {
	Supplier string
	Products []*models.Product
	Errors   []models.ScrapeError
	// Err marks a whole-worker failure; the supplier then contributes
	// zero products but the run continues for the others.
	Err error
}

// CategoryScraper fetches one category's listing pages. *scraper.Scraper
// implements it; tests substitute stubs.
type CategoryScraper interface {
	ScrapeCategory(ctx context.Context, category string, onPage scraper.PageFunc) error
}

// Worker scrapes all categories of one supplier, processes each page
// batch and appends it to the supplier's session files as it goes, so a
// crash loses at most one unflushed batch.
type Worker struct {
	supplier   string
	categories []string
	scraper    CategoryScraper
	processor  *process.Processor
	store      *output.Manager
	logger     *slog.Logger
}

// New builds a worker for one supplier.
func New(supplier string, categories []string, cs CategoryScraper, processor *process.Processor, store *output.Manager, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		supplier:   supplier,
		categories: categories,
		scraper:    cs,
		processor:  processor,
		store:      store,
		logger:     logger.With(slog.String("supplier", supplier)),
	}
}

// Run executes the worker's full flow and always returns a Result; it
// never panics the run on per-record or per-category failures.
func (w *Worker) Run(ctx context.Context, sessionID string) Result {
	res := Result{Supplier: w.supplier}

	if err := w.store.InitSession(w.supplier, sessionID); err != nil {
		res.Err = fmt.Errorf("init session: %w", err)
		return res
	}

	for _, category := range w.categories {
		w.logger.Info("category start", slog.String("category", category))

		count := 0
		err := w.scraper.ScrapeCategory(ctx, category, func(records []models.RawRecord) error {
			products, errs := w.processor.ProcessBatch(records, w.supplier)
			res.Errors = append(res.Errors, errs...)
			if len(products) == 0 {
				return nil
			}

			if err := w.store.AppendSession(w.supplier, sessionID, products); err != nil {
				// Fatal for this save only: the in-memory products stay,
				// but flag it loudly since it implies data loss risk.
				w.logger.Error("session append failed, committed data at risk",
					slog.String("category", category),
					slog.Any("error", err),
				)
				res.Errors = append(res.Errors, models.ScrapeError{
					Supplier: w.supplier,
					Error:    fmt.Sprintf("persistence failure: %v", err),
				})
			}

			res.Products = append(res.Products, products...)
			count += len(products)
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				res.Err = ctx.Err()
				return res
			}
			// Category failure: record it and move to the next category.
			w.logger.Error("category failed",
				slog.String("category", category),
				slog.Any("error", err),
			)
			res.Errors = append(res.Errors, models.ScrapeError{
				Supplier: w.supplier,
				Error:    err.Error(),
			})
			continue
		}

		w.logger.Info("category done",
			slog.String("category", category),
			slog.Int("products", count),
		)
	}

	// Cross-batch dedup within the supplier.
	res.Products = process.Dedupe(res.Products)
	return res
}
