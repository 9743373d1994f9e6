// Package query answers read-only queries over the persisted dataset:
// filtering, free-text search, pagination and aggregate statistics.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/VivekMangukiya11/donizo-material-scraper/models"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrCategoryNotFound marks a category with no products at all, which
// is distinct from an empty page after additional filters or pagination.
var ErrCategoryNotFound = errors.New("category not found")

// DefaultLimit caps a page when the caller supplied no limit.
const DefaultLimit = 100

// Service loads the dataset fresh per call through a small LRU keyed by
// the file's identity (path, mtime, size), so a rewritten dataset is
// picked up immediately while repeated queries against an unchanged
// file skip the parse.
type Service struct {
	path  string
	cache *lru.Cache[string, []*models.Product]
}

// NewService builds a query service over the dataset file at path.
func NewService(path string, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = 8
	}
	cache, err := lru.New[string, []*models.Product](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create dataset cache: %w", err)
	}
	return &Service{path: path, cache: cache}, nil
}

// load reads the dataset. A missing file is an empty dataset, matching
// the behaviour before any run has completed; a corrupt file is an
// error. Flat, consolidated and bare-array documents are all accepted.
func (s *Service) load() ([]*models.Product, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat dataset %s: %w", s.path, err)
	}

	key := fmt.Sprintf("%s|%d|%d", s.path, info.ModTime().UnixNano(), info.Size())
	if products, ok := s.cache.Get(key); ok {
		return products, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", s.path, err)
	}
	products, err := decodeProducts(data)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", s.path, err)
	}

	s.cache.Add(key, products)
	return products, nil
}

func decodeProducts(data []byte) ([]*models.Product, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var products []*models.Product
		if err := json.Unmarshal(data, &products); err != nil {
			return nil, err
		}
		return products, nil
	}

	var dataset models.Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, err
	}
	if dataset.Products != nil {
		return dataset.Products, nil
	}

	// Consolidated form: flatten in stable supplier order.
	suppliers := make([]string, 0, len(dataset.ProductsBySupplier))
	for name := range dataset.ProductsBySupplier {
		suppliers = append(suppliers, name)
	}
	sort.Strings(suppliers)

	var products []*models.Product
	for _, name := range suppliers {
		products = append(products, dataset.ProductsBySupplier[name]...)
	}
	return products, nil
}

// Filter describes one materials query. Zero values mean "no filter";
// Limit 0 means DefaultLimit.
type Filter struct {
	Supplier string
	Category string
	Query    string
	Offset   int
	Limit    int
}

// Materials returns the filtered, paginated product page.
func (s *Service) Materials(f Filter) ([]*models.Product, error) {
	products, err := s.load()
	if err != nil {
		return nil, err
	}
	return paginate(applyFilter(products, f), f.Offset, f.Limit), nil
}

// ByCategory returns products of one category. A category that matches
// nothing in the whole dataset is a not-found condition; an empty page
// after the supplier filter or pagination is a normal empty result.
func (s *Service) ByCategory(category string, f Filter) ([]*models.Product, error) {
	products, err := s.load()
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Product, 0)
	for _, product := range products {
		if product.Category == category {
			matched = append(matched, product)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, category)
	}

	f.Category = ""
	return paginate(applyFilter(matched, f), f.Offset, f.Limit), nil
}

// Search filters by case-insensitive substring over product name,
// description and brand, then applies the remaining filters.
func (s *Service) Search(queryText string, f Filter) ([]*models.Product, error) {
	f.Query = queryText
	return s.Materials(f)
}

func applyFilter(products []*models.Product, f Filter) []*models.Product {
	queryLower := strings.ToLower(f.Query)
	out := make([]*models.Product, 0, len(products))
	for _, product := range products {
		if f.Supplier != "" && product.Supplier != f.Supplier {
			continue
		}
		if f.Category != "" && product.Category != f.Category {
			continue
		}
		if queryLower != "" && !matchesQuery(product, queryLower) {
			continue
		}
		out = append(out, product)
	}
	return out
}

func matchesQuery(product *models.Product, queryLower string) bool {
	return strings.Contains(strings.ToLower(product.ProductName), queryLower) ||
		strings.Contains(strings.ToLower(product.Description), queryLower) ||
		strings.Contains(strings.ToLower(product.Brand), queryLower)
}

func paginate(products []*models.Product, offset, limit int) []*models.Product {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(products) {
		return []*models.Product{}
	}
	end := offset + limit
	if end > len(products) {
		end = len(products)
	}
	return products[offset:end]
}

// Stats are the aggregate counts over the whole dataset. LastUpdated is
// the maximum product timestamp, the dataset's freshness indicator.
type Stats struct {
	TotalProducts int            `json:"total_products"`
	Suppliers     map[string]int `json:"suppliers"`
	Categories    map[string]int `json:"categories"`
	LastUpdated   string         `json:"last_updated"`
}

// Stats computes the dataset statistics.
func (s *Service) Stats() (*Stats, error) {
	products, err := s.load()
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalProducts: len(products),
		Suppliers:     make(map[string]int),
		Categories:    make(map[string]int),
		LastUpdated:   "Unknown",
	}
	for _, product := range products {
		supplier := product.Supplier
		if supplier == "" {
			supplier = "unknown"
		}
		stats.Suppliers[supplier]++

		category := product.Category
		if category == "" {
			category = "unknown"
		}
		stats.Categories[category]++

		// RFC 3339 timestamps in UTC order lexicographically.
		if product.Timestamp != "" &&
			(stats.LastUpdated == "Unknown" || product.Timestamp > stats.LastUpdated) {
			stats.LastUpdated = product.Timestamp
		}
	}
	return stats, nil
}

// Suppliers returns the distinct supplier names, sorted.
func (s *Service) Suppliers() ([]string, error) {
	products, err := s.load()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, product := range products {
		supplier := product.Supplier
		if supplier == "" {
			supplier = "unknown"
		}
		seen[supplier] = struct{}{}
	}

	suppliers := make([]string, 0, len(seen))
	for name := range seen {
		suppliers = append(suppliers, name)
	}
	sort.Strings(suppliers)
	return suppliers, nil
}

// Categories returns each supplier's distinct categories, sorted.
func (s *Service) Categories() (map[string][]string, error) {
	products, err := s.load()
	if err != nil {
		return nil, err
	}

	sets := make(map[string]map[string]struct{})
	for _, product := range products {
		supplier := product.Supplier
		if supplier == "" {
			supplier = "unknown"
		}
		category := product.Category
		if category == "" {
			category = "unknown"
		}
		if sets[supplier] == nil {
			sets[supplier] = make(map[string]struct{})
		}
		sets[supplier][category] = struct{}{}
	}

	out := make(map[string][]string, len(sets))
	for supplier, categories := range sets {
		names := make([]string, 0, len(categories))
		for category := range categories {
			names = append(names, category)
		}
		sort.Strings(names)
		out[supplier] = names
	}
	return out, nil
}
