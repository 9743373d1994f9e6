package models

// SessionMetadata describes one supplier scraping session file.
type SessionMetadata struct {
	Scraper       string `json:"scraper"`
	SessionID     string `json:"session_id"`
	ScrapedAt     string `json:"scraped_at"`
	TotalProducts int    `json:"total_products"`
	LastUpdated   string `json:"last_updated,omitempty"`
	FileVersion   string `json:"file_version"`
}

// SessionDocument is the JSON document backing a session file. It is
// rewritten in full on every append so readers never observe a partial
// product list.
type SessionDocument struct {
	Metadata SessionMetadata `json:"metadata"`
	Products []*Product      `json:"products"`
}

// DatasetMetadata describes a persisted dataset snapshot.
type DatasetMetadata struct {
	ScrapedAt     string   `json:"scraped_at"`
	TotalProducts int      `json:"total_products"`
	Suppliers     []string `json:"suppliers,omitempty"`
	FileVersion   string   `json:"file_version"`
}

// ConsolidatedDataset is the cross-supplier snapshot taken once at the
// end of a run.
type ConsolidatedDataset struct {
	Metadata           DatasetMetadata       `json:"metadata"`
	ProductsBySupplier map[string][]*Product `json:"products_by_supplier"`
}

// Dataset is the flat persisted form consumed by the query service.
// Exactly one of Products or ProductsBySupplier is populated.
type Dataset struct {
	Metadata           DatasetMetadata       `json:"metadata"`
	Products           []*Product            `json:"products,omitempty"`
	ProductsBySupplier map[string][]*Product `json:"products_by_supplier,omitempty"`
}
