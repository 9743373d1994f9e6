// Package process transforms raw supplier records into canonical
// products: identity resolution, field normalization, required-field
// validation and deduplication.
package process

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VivekMangukiya11/donizo-material-scraper/config"
	"github.com/VivekMangukiya11/donizo-material-scraper/models"
	"github.com/VivekMangukiya11/donizo-material-scraper/normalize"
)

const dataVersion = "1.0"

// Processor turns one RawRecord into one Product. It is stateless apart
// from its configuration and safe for concurrent use.
type Processor struct {
	currency string
	unit     string
	dedupe   bool
	now      func() time.Time
}

// NewProcessor builds a processor from the data processing options.
func NewProcessor(cfg config.Processing) *Processor {
	currency := cfg.PriceCurrency
	if currency == "" {
		currency = normalize.DefaultCurrency
	}
	unit := cfg.MeasurementUnit
	if unit == "" {
		unit = normalize.DefaultUnit
	}
	return &Processor{
		currency: currency,
		unit:     unit,
		dedupe:   cfg.RemoveDuplicates,
		now:      time.Now,
	}
}

// Process builds the canonical product for one raw record. It is a
// total transformation: missing or malformed fields normalize to empty
// or default values, and the result may still fail Validate.
func (p *Processor) Process(raw models.RawRecord, supplier string) *models.Product {
	productURL := raw.String("product_url", "url")
	skuID := raw.String("sku_id", "sku")

	product := &models.Product{
		ID:          GenerateProductID(supplier, productURL, skuID),
		Supplier:    supplier,
		Category:    raw.String("category"),
		ProductName: raw.String("product_name", "name"),
		ProductURL:  productURL,
		SKUID:       skuID,
		Description: raw.String("description"),
		Rating:      raw.String("rating"),
	}

	product.Brand = normalize.Brand(raw.String("brand"))
	if product.Brand == "" || strings.EqualFold(product.Brand, "n/a") {
		product.Brand = "Unknown"
	}

	currency := raw.String("price_currency")
	if currency == "" {
		currency = p.currency
	}
	product.Price, product.PriceCurrency = normalize.Price(raw.String("price"), currency)
	if original := raw.String("original_price"); original != "" {
		if value, _ := normalize.Price(original, currency); value != "" {
			product.OriginalPrice = value
		}
	}

	product.Measurement = normalize.Measurement(raw.StringMap("measurement"), p.unit)
	product.ImageURLs = collectImageURLs(raw)
	product.Availability = normalize.Availability(product.ProductName, product.Description)

	// Processing time, not the source site's publish time.
	timestamp := p.now().UTC().Format(time.RFC3339)
	product.Timestamp = timestamp
	product.Metadata = models.Metadata{
		ScrapedAt:   timestamp,
		SupplierID:  supplier + "_" + product.ID,
		DataVersion: dataVersion,
	}

	return product
}

// collectImageURLs validates and deduplicates image URLs, preserving
// first-seen order.
func collectImageURLs(raw models.RawRecord) []string {
	candidates := raw.StringSlice("image_urls", "image_url")
	seen := make(map[string]struct{}, len(candidates))
	valid := make([]string, 0, len(candidates))
	for _, imageURL := range candidates {
		if imageURL == "" || !normalize.ValidURL(imageURL) {
			continue
		}
		if _, ok := seen[imageURL]; ok {
			continue
		}
		seen[imageURL] = struct{}{}
		valid = append(valid, imageURL)
	}
	return valid
}

// Validate reports whether the product carries the required fields.
// Products failing validation are dropped from the batch after being
// recorded in the run's error list.
func Validate(product *models.Product) error {
	if product == nil {
		return errors.New("product is nil")
	}
	if strings.TrimSpace(product.ProductName) == "" {
		return errors.New("product missing name")
	}
	if strings.TrimSpace(product.ProductURL) == "" {
		return fmt.Errorf("product %q missing url", product.ProductName)
	}
	if strings.TrimSpace(product.Price) == "" {
		return fmt.Errorf("product %q missing price", product.ProductName)
	}
	return nil
}

// ProcessBatch processes raw records one by one, collecting validation
// failures into the returned error list instead of aborting: one bad
// record never takes the batch down. Duplicates are removed when the
// configuration asks for it.
func (p *Processor) ProcessBatch(raws []models.RawRecord, supplier string) ([]*models.Product, []models.ScrapeError) {
	products := make([]*models.Product, 0, len(raws))
	var scrapeErrs []models.ScrapeError

	for _, raw := range raws {
		product := p.Process(raw, supplier)
		if err := Validate(product); err != nil {
			scrapeErrs = append(scrapeErrs, models.ScrapeError{
				Supplier: supplier,
				Product:  raw.String("product_name", "name"),
				Error:    err.Error(),
			})
			continue
		}
		products = append(products, product)
	}

	if p.dedupe {
		products = Dedupe(products)
	}
	return products, scrapeErrs
}
