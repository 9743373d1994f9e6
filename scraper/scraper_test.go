package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/VivekMangukiya11/donizo-material-scraper/config"
	"github.com/VivekMangukiya11/donizo-material-scraper/models"
	"github.com/jarcoal/httpmock"
)

func testSupplier() config.Supplier {
	return config.Supplier{
		Name:         "supplier",
		BaseURL:      "https://supplier.test",
		CategoryPath: "/c/%s?page=1",
		Enabled:      true,
		Selectors: config.Selectors{
			Product:  "div.product",
			Name:     ".name",
			Price:    ".price",
			Brand:    ".brand",
			URL:      "a.link",
			SKUAttr:  "data-sku",
			NextPage: "a.next",
		},
	}
}

func testHTTPSettings() config.HTTPSettings {
	return config.HTTPSettings{
		TimeoutMs:         2000,
		MaxPages:          10,
		MaxRetries:        2,
		RetryBackoffMs:    1,
		RetryBackoffMaxMs: 5,
		UserAgent:         "test-agent",
	}
}

func newTestScraper(t *testing.T) (*Scraper, *httpmock.MockTransport) {
	t.Helper()
	s, err := New(testSupplier(), testHTTPSettings(), slog.New(slog.NewTextHandler(testWriter{t}, nil)), nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	transport := httpmock.NewMockTransport()
	s.SetTransport(transport)
	return s, transport
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(http.StatusOK, body)
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return httpmock.ResponderFromResponse(resp)
}

func listingPage(nextHref string, products ...string) string {
	body := "<html><body>"
	for _, p := range products {
		body += p
	}
	if nextHref != "" {
		body += fmt.Sprintf(`<a class="next" href="%s">suivant</a>`, nextHref)
	}
	return body + "</body></html>"
}

func productCard(sku, name, price string) string {
	return fmt.Sprintf(
		`<div class="product" data-sku="%s"><h3 class="name">%s</h3><span class="price">%s</span><a class="link" href="/p/%s">voir</a></div>`,
		sku, name, price, sku)
}

func TestScrapeCategoryPagination(t *testing.T) {
	s, transport := newTestScraper(t)
	transport.RegisterResponder("GET", "https://supplier.test/c/tiles?page=1", htmlResponder(
		listingPage("/c/tiles?page=2",
			productCard("A1", "Carrelage Gris", "25,99 €"),
			productCard("B2", "Carrelage Beige", "19,99 €"),
		),
	))
	transport.RegisterResponder("GET", "https://supplier.test/c/tiles?page=2", htmlResponder(
		listingPage("",
			productCard("C3", "Carrelage Blanc", "29,99 €"),
		),
	))

	var pages [][]models.RawRecord
	err := s.ScrapeCategory(context.Background(), "tiles", func(records []models.RawRecord) error {
		pages = append(pages, records)
		return nil
	})
	if err != nil {
		t.Fatalf("ScrapeCategory() error: %v", err)
	}

	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	if len(pages[0]) != 2 || len(pages[1]) != 1 {
		t.Fatalf("page sizes = %d, %d, want 2, 1", len(pages[0]), len(pages[1]))
	}

	first := pages[0][0]
	if first.String("product_name") != "Carrelage Gris" {
		t.Fatalf("product_name = %q", first.String("product_name"))
	}
	if first.String("price") != "25,99 €" {
		t.Fatalf("price = %q", first.String("price"))
	}
	if first.String("sku_id") != "A1" {
		t.Fatalf("sku_id = %q", first.String("sku_id"))
	}
	if first.String("product_url") != "https://supplier.test/p/A1" {
		t.Fatalf("product_url = %q, want absolute", first.String("product_url"))
	}
	if first.String("category") != "tiles" {
		t.Fatalf("category = %q, want tiles", first.String("category"))
	}
}

func TestScrapeCategoryEmptyListing(t *testing.T) {
	s, transport := newTestScraper(t)
	transport.RegisterResponder("GET", "https://supplier.test/c/tiles?page=1",
		htmlResponder(listingPage("/c/tiles?page=2")))

	calls := 0
	err := s.ScrapeCategory(context.Background(), "tiles", func([]models.RawRecord) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("ScrapeCategory() error: %v", err)
	}
	if calls != 0 {
		t.Fatalf("onPage called %d times for empty listing, want 0", calls)
	}
	if transport.GetTotalCallCount() != 1 {
		t.Fatalf("empty first page must stop the walk, got %d requests", transport.GetTotalCallCount())
	}
}

func TestScrapeCategoryMaxPagesBound(t *testing.T) {
	s, transport := newTestScraper(t)
	s.http.MaxPages = 2
	// Every page links to itself-plus-one forever.
	for page := 1; page <= 5; page++ {
		next := fmt.Sprintf("/c/tiles?page=%d", page+1)
		transport.RegisterResponder("GET", fmt.Sprintf("https://supplier.test/c/tiles?page=%d", page),
			htmlResponder(listingPage(next, productCard(fmt.Sprintf("S%d", page), "Produit", "10 €"))))
	}

	pages := 0
	err := s.ScrapeCategory(context.Background(), "tiles", func([]models.RawRecord) error {
		pages++
		return nil
	})
	if err != nil {
		t.Fatalf("ScrapeCategory() error: %v", err)
	}
	if pages != 2 {
		t.Fatalf("got %d pages, want max_pages bound of 2", pages)
	}
}

func TestScrapeCategoryRetriesTransientErrors(t *testing.T) {
	s, transport := newTestScraper(t)
	transport.RegisterResponder("GET", "https://supplier.test/c/tiles?page=1",
		httpmock.NewStringResponder(http.StatusTooManyRequests, "slow down"))

	err := s.ScrapeCategory(context.Background(), "tiles", func([]models.RawRecord) error {
		t.Fatalf("onPage must not run on a failed category")
		return nil
	})
	if err == nil {
		t.Fatalf("ScrapeCategory() = nil error, want rate_limited")
	}
	var rateLimited ErrRateLimited
	if !errors.As(err, &rateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
	// Initial attempt plus max_retries.
	if got := transport.GetTotalCallCount(); got != 3 {
		t.Fatalf("got %d requests, want 3", got)
	}
}

func TestScrapeCategoryDoesNotRetryForbidden(t *testing.T) {
	s, transport := newTestScraper(t)
	transport.RegisterResponder("GET", "https://supplier.test/c/tiles?page=1",
		httpmock.NewStringResponder(http.StatusForbidden, "blocked"))

	err := s.ScrapeCategory(context.Background(), "tiles", func([]models.RawRecord) error { return nil })
	var forbidden ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("error = %v, want ErrForbidden", err)
	}
	if got := transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("got %d requests for a forbidden response, want 1", got)
	}
}

func TestScrapeCategoryCancelledContext(t *testing.T) {
	s, _ := newTestScraper(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.ScrapeCategory(ctx, "tiles", func([]models.RawRecord) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestCategoryURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		path     string
		category string
		expected string
	}{
		{
			name:     "printf template",
			baseURL:  "https://supplier.test",
			path:     "/c/%s?page=1",
			category: "tiles",
			expected: "https://supplier.test/c/tiles?page=1",
		},
		{
			name:     "trailing slash trimmed",
			baseURL:  "https://supplier.test/",
			path:     "/c/%s",
			category: "tiles",
			expected: "https://supplier.test/c/tiles",
		},
		{
			name:     "default search path",
			baseURL:  "https://supplier.test",
			category: "tiles",
			expected: "https://supplier.test/search?q=tiles",
		},
		{
			name:     "category escaped",
			baseURL:  "https://supplier.test",
			path:     "/c/%s",
			category: "salle de bain",
			expected: "https://supplier.test/c/salle+de+bain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			supplier := testSupplier()
			supplier.BaseURL = tt.baseURL
			supplier.CategoryPath = tt.path
			s, err := New(supplier, testHTTPSettings(), nil, nil)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if got := s.categoryURL(tt.category); got != tt.expected {
				t.Fatalf("categoryURL(%q) = %q, want %q", tt.category, got, tt.expected)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "deadline", err: context.DeadlineExceeded, expected: "timeout"},
		{name: "net timeout", err: &net.OpError{Op: "dial", Err: timeoutErr{}}, expected: "timeout"},
		{name: "connection refused", err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}, expected: "connection"},
		{name: "forbidden", err: errors.New("forbidden"), statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: errors.New("not found"), statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: errors.New("too many requests"), statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "status without error", statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "unclassified", err: errors.New("boom"), statusCode: http.StatusInternalServerError, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError label = %q, want %q", got, tt.expected)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryable(t *testing.T) {
	if retryable(ErrForbidden{Err: errors.New("403")}) {
		t.Fatalf("forbidden must not be retryable")
	}
	if retryable(ErrNotFound{Err: errors.New("404")}) {
		t.Fatalf("not_found must not be retryable")
	}
	if !retryable(ErrRateLimited{Err: errors.New("429")}) {
		t.Fatalf("rate_limited must be retryable")
	}
	if !retryable(ErrTimeout{Err: context.DeadlineExceeded}) {
		t.Fatalf("timeout must be retryable")
	}
	if !retryable(errors.New("boom")) {
		t.Fatalf("unclassified errors must be retryable")
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 1, expected: 200 * time.Millisecond},
		{attempt: 2, expected: 400 * time.Millisecond},
		{attempt: 3, expected: 800 * time.Millisecond},
		{attempt: 5, expected: 2 * time.Second}, // capped
		{attempt: 0, expected: 200 * time.Millisecond},
	}

	for _, tt := range tests {
		got := backoff(tt.attempt, 200*time.Millisecond, 2*time.Second)
		if got != tt.expected {
			t.Fatalf("backoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}
