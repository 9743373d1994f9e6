package worker

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/VivekMangukiya11/donizo-material-scraper/config"
	"github.com/VivekMangukiya11/donizo-material-scraper/models"
	"github.com/VivekMangukiya11/donizo-material-scraper/output"
	"github.com/VivekMangukiya11/donizo-material-scraper/process"
	"github.com/VivekMangukiya11/donizo-material-scraper/scraper"
)

// stubScraper replays canned pages per category.
type stubScraper struct {
	pages map[string][][]models.RawRecord
	errs  map[string]error
}

func (s *stubScraper) ScrapeCategory(ctx context.Context, category string, onPage scraper.PageFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.errs[category]; err != nil {
		return err
	}
	for _, page := range s.pages[category] {
		if err := onPage(page); err != nil {
			return err
		}
	}
	return nil
}

func rawProduct(name, productURL string) models.RawRecord {
	return models.RawRecord{
		"product_name": name,
		"price":        "25.99",
		"product_url":  productURL,
	}
}

func newTestStore(t *testing.T) *output.Manager {
	t.Helper()
	dir := t.TempDir()
	store, err := output.NewManager(config.Output{
		DataDir:    filepath.Join(dir, "data"),
		ReportsDir: filepath.Join(dir, "reports"),
	})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	return store
}

func newTestWorker(t *testing.T, stub *stubScraper) *Worker {
	t.Helper()
	processor := process.NewProcessor(config.Processing{RemoveDuplicates: true})
	return New("supplier", []string{"tiles", "paint"}, stub, processor, newTestStore(t), nil)
}

func TestWorkerRun(t *testing.T) {
	stub := &stubScraper{
		pages: map[string][][]models.RawRecord{
			"tiles": {
				{rawProduct("Carrelage Gris", "https://s.example/p/1"), rawProduct("Carrelage Beige", "https://s.example/p/2")},
				{rawProduct("Carrelage Blanc", "https://s.example/p/3")},
			},
			"paint": {
				{rawProduct("Peinture", "https://s.example/p/4")},
			},
		},
	}
	w := newTestWorker(t, stub)

	res := w.Run(context.Background(), "s1")
	if res.Err != nil {
		t.Fatalf("Run() whole-worker error: %v", res.Err)
	}
	if res.Supplier != "supplier" {
		t.Fatalf("result supplier = %q", res.Supplier)
	}
	if len(res.Products) != 4 {
		t.Fatalf("got %d products, want 4", len(res.Products))
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}

	doc, err := w.store.LoadSession("supplier", "s1")
	if err != nil {
		t.Fatalf("LoadSession() error: %v", err)
	}
	if doc.Metadata.TotalProducts != 4 {
		t.Fatalf("persisted total = %d, want 4", doc.Metadata.TotalProducts)
	}
}

func TestWorkerRecordsInvalidRecords(t *testing.T) {
	stub := &stubScraper{
		pages: map[string][][]models.RawRecord{
			"tiles": {
				{
					rawProduct("Carrelage Gris", "https://s.example/p/1"),
					{"price": "10.00", "product_url": "https://s.example/p/anonyme"},
				},
			},
		},
	}
	w := newTestWorker(t, stub)

	res := w.Run(context.Background(), "s1")
	if len(res.Products) != 1 {
		t.Fatalf("got %d products, want 1", len(res.Products))
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Error, "missing name") {
		t.Fatalf("errors = %v, want one missing-name entry", res.Errors)
	}
}

func TestWorkerContinuesAfterCategoryFailure(t *testing.T) {
	stub := &stubScraper{
		pages: map[string][][]models.RawRecord{
			"paint": {
				{rawProduct("Peinture", "https://s.example/p/4")},
			},
		},
		errs: map[string]error{
			"tiles": errors.New("category \"tiles\" page 1: rate_limited"),
		},
	}
	w := newTestWorker(t, stub)

	res := w.Run(context.Background(), "s1")
	if res.Err != nil {
		t.Fatalf("category failure must not fail the worker: %v", res.Err)
	}
	if len(res.Products) != 1 || res.Products[0].ProductName != "Peinture" {
		t.Fatalf("products after failed category = %v", res.Products)
	}
	if len(res.Errors) != 1 || res.Errors[0].Supplier != "supplier" {
		t.Fatalf("errors = %v, want one supplier entry", res.Errors)
	}
}

func TestWorkerDedupesAcrossCategories(t *testing.T) {
	duplicate := rawProduct("Carrelage Gris", "https://s.example/p/1")
	stub := &stubScraper{
		pages: map[string][][]models.RawRecord{
			"tiles": {{duplicate}},
			"paint": {{duplicate}},
		},
	}
	w := newTestWorker(t, stub)

	res := w.Run(context.Background(), "s1")
	if len(res.Products) != 1 {
		t.Fatalf("got %d products, want cross-category dedup to 1", len(res.Products))
	}
}

func TestWorkerCancelledContext(t *testing.T) {
	stub := &stubScraper{}
	w := newTestWorker(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := w.Run(ctx, "s1")
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("result err = %v, want context.Canceled", res.Err)
	}
}
