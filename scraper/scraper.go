// Package scraper fetches supplier category listings with a
// selector-driven colly collector and emits loosely-typed raw records.
// It knows nothing about canonical products; normalization happens
// downstream in the process package.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/VivekMangukiya11/donizo-material-scraper/config"
	"github.com/VivekMangukiya11/donizo-material-scraper/models"
	"github.com/gocolly/colly/v2"
)

// PageFunc receives the raw records extracted from one listing page.
// Returning an error stops the category walk.
type PageFunc func(records []models.RawRecord) error

// Scraper walks one supplier's category listings page by page,
// synchronously: fetch, extract, hand the batch to the caller, follow
// the next-page link. Each worker owns its own Scraper; instances are
// not safe for concurrent use.
type Scraper struct {
	supplier config.Supplier
	http     config.HTTPSettings
	logger   *slog.Logger
	metrics  *Metrics

	collector *colly.Collector

	mu       sync.Mutex
	page     []models.RawRecord
	nextURL  string
	visitErr error
}

// New builds a scraper for one supplier.
func New(supplier config.Supplier, httpCfg config.HTTPSettings, logger *slog.Logger, metrics *Metrics) (*Scraper, error) {
	parsed, err := url.Parse(supplier.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	if logger == nil {
		logger = slog.Default()
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(httpCfg.UserAgent),
	)
	collector.SetRequestTimeout(httpCfg.Timeout())
	collector.IgnoreRobotsTxt = !httpCfg.RespectRobotsTxt
	// The page loop controls which URLs are visited, including retries
	// of the same URL, so colly's own visited-set must not interfere.
	collector.AllowURLRevisit = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   httpCfg.Timeout(),
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	s := &Scraper{
		supplier:  supplier,
		http:      httpCfg,
		logger:    logger.With(slog.String("supplier", supplier.Name)),
		metrics:   metrics,
		collector: collector,
	}
	s.configureHandlers()
	return s, nil
}

// SetTransport swaps the underlying HTTP transport; tests use this to
// install a mock.
func (s *Scraper) SetTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

func (s *Scraper) configureHandlers() {
	sel := s.supplier.Selectors

	s.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
	})

	s.collector.OnResponse(func(r *colly.Response) {
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			s.metrics.ObserveDuration(time.Since(start))
		}
		if r.StatusCode >= http.StatusBadRequest {
			s.logger.Error("non-200 response",
				slog.Int("status", r.StatusCode),
				slog.String("url", r.Request.URL.String()),
			)
		}
	})

	s.collector.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
		}
		s.mu.Lock()
		s.visitErr = classifyError(err, statusCode)
		s.mu.Unlock()
	})

	s.collector.OnHTML(sel.Product, func(e *colly.HTMLElement) {
		record := extractRecord(e, sel)
		if record == nil {
			return
		}
		s.mu.Lock()
		s.page = append(s.page, record)
		s.mu.Unlock()
	})

	if sel.NextPage != "" {
		s.collector.OnHTML(sel.NextPage, func(e *colly.HTMLElement) {
			link := e.Attr("href")
			if link == "" {
				return
			}
			s.mu.Lock()
			s.nextURL = e.Request.AbsoluteURL(link)
			s.mu.Unlock()
		})
	}
}

// ScrapeCategory walks one category's listing pages until the listing
// is exhausted: an empty page or a missing next-page link terminates
// the walk, not a fixed page count (max_pages is only a safety bound).
func (s *Scraper) ScrapeCategory(ctx context.Context, category string, onPage PageFunc) error {
	pageURL := s.categoryURL(category)

	for page := 1; pageURL != ""; page++ {
		if s.http.MaxPages > 0 && page > s.http.MaxPages {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		records, next, err := s.visitWithRetry(pageURL)
		if err != nil {
			s.metrics.IncError(s.supplier.Name, errorTypeLabel(err))
			return fmt.Errorf("category %q page %d: %w", category, page, err)
		}
		if len(records) == 0 {
			break
		}

		for _, record := range records {
			record["category"] = category
		}
		s.metrics.IncPages(s.supplier.Name)
		s.metrics.AddProducts(s.supplier.Name, len(records))
		s.logger.Debug("page scraped",
			slog.String("category", category),
			slog.Int("page", page),
			slog.Int("products", len(records)),
		)

		if err := onPage(records); err != nil {
			return err
		}

		if next == pageURL {
			break
		}
		pageURL = next

		if pageURL != "" && s.http.Delay() > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.http.Delay()):
			}
		}
	}
	return nil
}

func (s *Scraper) categoryURL(category string) string {
	path := s.supplier.CategoryPath
	if path == "" {
		path = "/search?q=%s"
	}
	return strings.TrimSuffix(s.supplier.BaseURL, "/") + fmt.Sprintf(path, url.QueryEscape(category))
}

func (s *Scraper) visitWithRetry(pageURL string) ([]models.RawRecord, string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.http.MaxRetries+1; attempt++ {
		records, next, err := s.fetch(pageURL)
		if err == nil {
			return records, next, nil
		}
		lastErr = err
		if !retryable(err) || attempt > s.http.MaxRetries {
			break
		}
		s.metrics.IncRetries(s.supplier.Name)
		s.logger.Debug("retrying page",
			slog.String("url", pageURL),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		time.Sleep(backoff(attempt, s.http.RetryBackoff(), s.http.RetryBackoffMax()))
	}
	return nil, "", lastErr
}

// fetch visits one URL and returns the extracted records plus the
// absolute next-page URL, if the page advertised one.
func (s *Scraper) fetch(pageURL string) ([]models.RawRecord, string, error) {
	s.mu.Lock()
	s.page = nil
	s.nextURL = ""
	s.visitErr = nil
	s.mu.Unlock()

	err := s.collector.Visit(pageURL)
	s.collector.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visitErr != nil {
		return nil, "", s.visitErr
	}
	if err != nil {
		return nil, "", classifyError(err, 0)
	}
	return s.page, s.nextURL, nil
}

func backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * time.Duration(1<<(attempt-1))
	if max > 0 && delay > max {
		delay = max
	}
	return delay
}

// extractRecord builds a raw record from one product element. Fields
// whose selector is unset or matches nothing are simply absent; the
// processor treats every key as optional.
func extractRecord(e *colly.HTMLElement, sel config.Selectors) models.RawRecord {
	record := models.RawRecord{}

	put := func(key, selector string) {
		if selector == "" {
			return
		}
		if value := strings.TrimSpace(e.ChildText(selector)); value != "" {
			record[key] = value
		}
	}
	put("product_name", sel.Name)
	put("price", sel.Price)
	put("original_price", sel.OriginalPrice)
	put("brand", sel.Brand)
	put("description", sel.Description)
	put("rating", sel.Rating)

	if sel.URL != "" {
		if href := e.ChildAttr(sel.URL, "href"); href != "" {
			record["product_url"] = e.Request.AbsoluteURL(href)
		}
	}
	if sel.Image != "" {
		var images []string
		for _, src := range e.ChildAttrs(sel.Image, "src") {
			if src == "" {
				continue
			}
			images = append(images, e.Request.AbsoluteURL(src))
		}
		if len(images) > 0 {
			record["image_urls"] = images
		}
	}
	if sel.SKUAttr != "" {
		if sku := strings.TrimSpace(e.Attr(sel.SKUAttr)); sku != "" {
			record["sku_id"] = sku
		}
	}
	if len(sel.Measurements) > 0 {
		measurement := make(map[string]string, len(sel.Measurements))
		for field, selector := range sel.Measurements {
			if value := strings.TrimSpace(e.ChildText(selector)); value != "" {
				measurement[field] = value
			}
		}
		if len(measurement) > 0 {
			record["measurement"] = measurement
		}
	}

	if len(record) == 0 {
		return nil
	}
	return record
}
