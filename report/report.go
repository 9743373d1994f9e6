package report

import (
	"sort"
	"time"

	"github.com/VivekMangukiya11/donizo-material-scraper/models"
	"github.com/google/uuid"
)

const fileVersion = "1.0"

// Consolidate wraps the per-supplier product lists in one dataset
// snapshot. It is a pure, single-shot operation taken once at the end
// of a run; it takes read-only ownership of the slices, so callers must
// not mutate them afterwards.
func Consolidate(bySupplier map[string][]*models.Product) *models.ConsolidatedDataset {
	total := 0
	suppliers := make([]string, 0, len(bySupplier))
	for name, products := range bySupplier {
		suppliers = append(suppliers, name)
		total += len(products)
	}
	sort.Strings(suppliers)

	return &models.ConsolidatedDataset{
		Metadata: models.DatasetMetadata{
			ScrapedAt:     time.Now().UTC().Format(time.RFC3339),
			TotalProducts: total,
			Suppliers:     suppliers,
			FileVersion:   fileVersion,
		},
		ProductsBySupplier: bySupplier,
	}
}

// Metadata describes a generated run report.
type Metadata struct {
	GeneratedAt string `json:"generated_at"`
	ReportType  string `json:"report_type"`
	RunID       string `json:"run_id"`
	Version     string `json:"version"`
}

// Report wraps the run statistics with generation metadata.
type Report struct {
	Metadata Metadata `json:"report_metadata"`
	Stats    *Stats   `json:"scraping_stats"`
}

// BuildReport snapshots the finalized run statistics into a report.
func BuildReport(stats *Stats) *Report {
	return &Report{
		Metadata: Metadata{
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			ReportType:  "scraping_summary",
			RunID:       uuid.NewString(),
			Version:     fileVersion,
		},
		Stats: stats,
	}
}
