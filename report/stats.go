// Package report aggregates run statistics, consolidates per-supplier
// results into one dataset snapshot, and builds the final run report.
package report

import (
	"sort"
	"time"

	"github.com/VivekMangukiya11/donizo-material-scraper/models"
)

// SupplierSummary summarises one supplier's contribution to a run.
type SupplierSummary struct {
	ProductsScraped int      `json:"products_scraped"`
	Categories      []string `json:"categories"`
}

// Stats is the mutable aggregate owned by the orchestrating run. It is
// not safe for concurrent use: workers report their results over a
// channel and only the orchestrator mutates the stats.
type Stats struct {
	StartTime     time.Time                  `json:"start_time"`
	EndTime       time.Time                  `json:"end_time"`
	Duration      float64                    `json:"duration_seconds"`
	TotalProducts int                        `json:"total_products"`
	Suppliers     map[string]SupplierSummary `json:"suppliers"`
	Categories    map[string]int             `json:"categories"`
	Errors        []models.ScrapeError       `json:"errors"`

	finalized bool
}

// NewStats starts the clock for a run.
func NewStats() *Stats {
	return &Stats{
		StartTime:  time.Now(),
		Suppliers:  make(map[string]SupplierSummary),
		Categories: make(map[string]int),
	}
}

// RecordSupplier registers a supplier's deduplicated products: the
// per-supplier summary plus the per-category counts.
func (s *Stats) RecordSupplier(name string, products []*models.Product) {
	categories := make(map[string]struct{})
	for _, product := range products {
		if product.Category != "" {
			categories[product.Category] = struct{}{}
			s.Categories[product.Category]++
		}
	}

	names := make([]string, 0, len(categories))
	for category := range categories {
		names = append(names, category)
	}
	sort.Strings(names)

	s.Suppliers[name] = SupplierSummary{
		ProductsScraped: len(products),
		Categories:      names,
	}
}

// AddErrors appends entries to the run's error list.
func (s *Stats) AddErrors(errs ...models.ScrapeError) {
	s.Errors = append(s.Errors, errs...)
}

// Finalize stamps the end time and duration. It runs exactly once per
// run; later calls are no-ops.
func (s *Stats) Finalize(totalProducts int) {
	if s.finalized {
		return
	}
	s.finalized = true
	s.TotalProducts = totalProducts
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime).Seconds()
}

// ErrorCount returns the number of recorded errors.
func (s *Stats) ErrorCount() int {
	return len(s.Errors)
}
