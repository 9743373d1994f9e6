// Package output manages the persisted files of a run: per-session
// JSON and CSV product files, the consolidated dataset, the flat
// materials dataset consumed by the query API, and run reports.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/VivekMangukiya11/donizo-material-scraper/config"
	"github.com/VivekMangukiya11/donizo-material-scraper/models"
	"github.com/VivekMangukiya11/donizo-material-scraper/report"
)

const fileVersion = "1.0"

// Manager owns the output directories. Session appends are serialized
// per (scraper, session) pair, so concurrent workers writing distinct
// sessions never block each other while the read-modify-write of a
// single session stays a critical section.
type Manager struct {
	dataDir    string
	reportsDir string
	backup     bool

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// NewManager creates the output directories. Failure here aborts the
// run before any scraping starts.
func NewManager(cfg config.Output) (*Manager, error) {
	for _, dir := range []string{cfg.DataDir, cfg.ReportsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return &Manager{
		dataDir:    cfg.DataDir,
		reportsDir: cfg.ReportsDir,
		backup:     cfg.BackupPrevious,
		sessions:   make(map[string]*sync.Mutex),
	}, nil
}

func (m *Manager) sessionLock(scraper, sessionID string) *sync.Mutex {
	key := scraper + "/" + sessionID
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.sessions[key]
	if !ok {
		lock = &sync.Mutex{}
		m.sessions[key] = lock
	}
	return lock
}

func (m *Manager) sessionJSONPath(scraper, sessionID string) string {
	return filepath.Join(m.dataDir, fmt.Sprintf("%s_products_%s.json", scraper, sessionID))
}

func (m *Manager) sessionCSVPath(scraper, sessionID string) string {
	return filepath.Join(m.dataDir, fmt.Sprintf("%s_products_%s.csv", scraper, sessionID))
}

// InitSession writes the empty session shell: a JSON document with
// metadata and no products, and a CSV file holding only the header row.
func (m *Manager) InitSession(scraper, sessionID string) error {
	lock := m.sessionLock(scraper, sessionID)
	lock.Lock()
	defer lock.Unlock()

	doc := &models.SessionDocument{
		Metadata: models.SessionMetadata{
			Scraper:     scraper,
			SessionID:   sessionID,
			ScrapedAt:   nowISO(),
			FileVersion: fileVersion,
		},
		Products: []*models.Product{},
	}
	if err := writeJSONAtomic(m.sessionJSONPath(scraper, sessionID), doc); err != nil {
		return fmt.Errorf("initialize session json: %w", err)
	}
	if err := writeCSVHeader(m.sessionCSVPath(scraper, sessionID)); err != nil {
		return fmt.Errorf("initialize session csv: %w", err)
	}
	return nil
}

// AppendSession extends the session with one batch: it reads the
// current document, appends the products, recomputes the totals and
// rewrites the whole JSON atomically (temp file + rename), so a crash
// mid-write leaves the previous complete file intact and loses at most
// this one batch. CSV rows are appended alongside.
func (m *Manager) AppendSession(scraper, sessionID string, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}

	lock := m.sessionLock(scraper, sessionID)
	lock.Lock()
	defer lock.Unlock()

	jsonPath := m.sessionJSONPath(scraper, sessionID)
	doc, err := readSession(jsonPath)
	if err != nil {
		return fmt.Errorf("read session %s: %w", jsonPath, err)
	}

	doc.Products = append(doc.Products, products...)
	doc.Metadata.TotalProducts = len(doc.Products)
	doc.Metadata.LastUpdated = nowISO()

	if err := writeJSONAtomic(jsonPath, doc); err != nil {
		return fmt.Errorf("append session json: %w", err)
	}
	if err := appendCSVRows(m.sessionCSVPath(scraper, sessionID), products); err != nil {
		return fmt.Errorf("append session csv: %w", err)
	}
	return nil
}

// LoadSession reads a session document back.
func (m *Manager) LoadSession(scraper, sessionID string) (*models.SessionDocument, error) {
	lock := m.sessionLock(scraper, sessionID)
	lock.Lock()
	defer lock.Unlock()
	return readSession(m.sessionJSONPath(scraper, sessionID))
}

// SaveConsolidated persists the cross-supplier snapshot and returns its
// path.
func (m *Manager) SaveConsolidated(dataset *models.ConsolidatedDataset, stamp string) (string, error) {
	path := filepath.Join(m.dataDir, fmt.Sprintf("consolidated_materials_%s.json", stamp))
	m.backupPrevious(path)
	if err := writeJSONAtomic(path, dataset); err != nil {
		return "", fmt.Errorf("save consolidated data: %w", err)
	}
	return path, nil
}

// SaveMaterials writes the flat dataset the query service reads.
func (m *Manager) SaveMaterials(products []*models.Product, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	m.backupPrevious(path)

	dataset := &models.Dataset{
		Metadata: models.DatasetMetadata{
			ScrapedAt:     nowISO(),
			TotalProducts: len(products),
			FileVersion:   fileVersion,
		},
		Products: products,
	}
	if err := writeJSONAtomic(path, dataset); err != nil {
		return fmt.Errorf("save materials dataset: %w", err)
	}
	return nil
}

// SaveReport persists the run report and returns its path.
func (m *Manager) SaveReport(rep *report.Report, stamp string) (string, error) {
	path := filepath.Join(m.reportsDir, fmt.Sprintf("scraping_report_%s.json", stamp))
	if err := writeJSONAtomic(path, rep); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

func (m *Manager) backupPrevious(path string) {
	if !m.backup {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	// Best effort; a failed backup never blocks the new write.
	_ = os.Rename(path, path+".backup")
}

func readSession(path string) (*models.SessionDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc models.SessionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse session document: %w", err)
	}
	return &doc, nil
}

// writeJSONAtomic writes v to a temp file in the target directory and
// renames it into place, so readers never observe a partial document.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ErrNotFound reports whether err is a missing-file condition.
func ErrNotFound(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
