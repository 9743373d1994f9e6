package process

import "github.com/VivekMangukiya11/donizo-material-scraper/models"

type dedupeKey struct {
	url  string
	name string
}

// Dedupe drops products whose (product_url, product_name) pair was
// already seen, preserving first-occurrence order. The key is an exact
// string match: trailing-slash or query-string URL variants and minor
// name variants are NOT merged, which is a known limitation of the
// dedup contract rather than a defect. The key is independent of the
// product id, so records with different SKUs but identical URL and name
// still collapse to one product.
func Dedupe(products []*models.Product) []*models.Product {
	seen := make(map[dedupeKey]struct{}, len(products))
	unique := make([]*models.Product, 0, len(products))
	for _, product := range products {
		key := dedupeKey{url: product.ProductURL, name: product.ProductName}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, product)
	}
	return unique
}
