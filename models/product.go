// Package models defines the canonical data structures shared by the
// scraping pipeline, the persisted output files, and the query API.
package models

// Availability is the stock status derived from listing text.
type Availability string

// Availability values. DetermineAvailability in the normalize package is a
// best-effort text classification, so "unknown" is a normal outcome.
const (
	AvailabilityInStock    Availability = "in_stock"
	AvailabilityOutOfStock Availability = "out_of_stock"
	AvailabilityLimited    Availability = "limited"
	AvailabilityUnknown    Availability = "unknown"
)

// Product is the canonical, validated entity produced by the processor.
// It is never mutated after creation; deduplication and validation only
// drop products, they do not rewrite them.
type Product struct {
	ID            string            `json:"id"`
	Supplier      string            `json:"supplier"`
	Category      string            `json:"category"`
	ProductName   string            `json:"product_name"`
	Brand         string            `json:"brand"`
	Price         string            `json:"price"`
	PriceCurrency string            `json:"price_currency"`
	OriginalPrice string            `json:"original_price,omitempty"`
	ProductURL    string            `json:"product_url"`
	Measurement   map[string]string `json:"measurement"`
	ImageURLs     []string          `json:"image_urls"`
	Rating        string            `json:"rating,omitempty"`
	Availability  Availability      `json:"availability"`
	SKUID         string            `json:"sku_id,omitempty"`
	Description   string            `json:"description"`
	Timestamp     string            `json:"timestamp"`
	Metadata      Metadata          `json:"metadata"`
}

// Metadata carries provenance information for a product.
type Metadata struct {
	ScrapedAt   string `json:"scraped_at"`
	SupplierID  string `json:"supplier_id"`
	DataVersion string `json:"data_version"`
}

// ScrapeError is one entry in a run's error list. Product holds the
// product name when it was recoverable from the raw record.
type ScrapeError struct {
	Supplier string `json:"supplier"`
	Product  string `json:"product,omitempty"`
	Error    string `json:"error"`
}
