package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/VivekMangukiya11/donizo-material-scraper/models"
)

// sessionCSVHeader is the flattened tabular form of a Product. The
// fixed-shape metadata object flattens to metadata_* columns;
// measurement keys are dynamic, so they flatten into one column of
// sorted "key=value" pairs; lists join with "; ".
var sessionCSVHeader = []string{
	"id", "supplier", "category", "product_name", "brand",
	"price", "price_currency", "original_price", "product_url", "sku_id",
	"rating", "availability", "description", "timestamp",
	"image_urls", "measurement",
	"metadata_scraped_at", "metadata_supplier_id", "metadata_data_version",
}

const listSeparator = "; "

func csvRow(p *models.Product) []string {
	return []string{
		p.ID,
		p.Supplier,
		p.Category,
		p.ProductName,
		p.Brand,
		p.Price,
		p.PriceCurrency,
		p.OriginalPrice,
		p.ProductURL,
		p.SKUID,
		p.Rating,
		string(p.Availability),
		p.Description,
		p.Timestamp,
		strings.Join(p.ImageURLs, listSeparator),
		flattenMeasurement(p.Measurement),
		p.Metadata.ScrapedAt,
		p.Metadata.SupplierID,
		p.Metadata.DataVersion,
	}
}

func flattenMeasurement(measurement map[string]string) string {
	if len(measurement) == 0 {
		return ""
	}
	keys := make([]string, 0, len(measurement))
	for key := range measurement {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+measurement[key])
	}
	return strings.Join(pairs, listSeparator)
}

func writeCSVHeader(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(sessionCSVHeader); err != nil {
		f.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush csv header: %w", err)
	}
	return f.Close()
}

func appendCSVRows(path string, products []*models.Product) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	for _, product := range products {
		if err := writer.Write(csvRow(product)); err != nil {
			f.Close()
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush csv records: %w", err)
	}
	return f.Close()
}
