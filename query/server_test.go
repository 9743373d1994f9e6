package query

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/VivekMangukiya11/donizo-material-scraper/config"
	"github.com/VivekMangukiya11/donizo-material-scraper/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := newTestService(t, flatDataset(testProducts()))
	server := NewServer(svc, config.API{Addr: ":0"}, nil, nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, wantStatus int, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("GET %s content type = %q", url, ct)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("GET %s decode: %v", url, err)
		}
	}
}

func TestMaterialsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var all []*models.Product
	getJSON(t, ts.URL+"/materials", http.StatusOK, &all)
	if len(all) != 3 {
		t.Fatalf("got %d products, want 3", len(all))
	}

	var filtered []*models.Product
	getJSON(t, ts.URL+"/materials?supplier=castorama&limit=1&offset=1", http.StatusOK, &filtered)
	if len(filtered) != 1 || filtered[0].ID != "castorama_2" {
		t.Fatalf("filtered page = %v", filtered)
	}

	// Malformed pagination params fall back to defaults.
	var fallback []*models.Product
	getJSON(t, ts.URL+"/materials?limit=abc&offset=-3", http.StatusOK, &fallback)
	if len(fallback) != 3 {
		t.Fatalf("fallback page = %d products, want 3", len(fallback))
	}
}

func TestCategoryEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var tiles []*models.Product
	getJSON(t, ts.URL+"/materials/tiles", http.StatusOK, &tiles)
	if len(tiles) != 2 {
		t.Fatalf("got %d tiles, want 2", len(tiles))
	}

	var notFound map[string]string
	getJSON(t, ts.URL+"/materials/plumbing", http.StatusNotFound, &notFound)
	if notFound["detail"] != "no products found for category: plumbing" {
		t.Fatalf("not-found body = %v", notFound)
	}
}

func TestStatsEndpointNotShadowedByCategory(t *testing.T) {
	ts := newTestServer(t)

	var stats Stats
	getJSON(t, ts.URL+"/materials/stats", http.StatusOK, &stats)
	if stats.TotalProducts != 3 {
		t.Fatalf("stats total = %d, want 3", stats.TotalProducts)
	}
	if stats.LastUpdated != "2025-03-14T10:00:00Z" {
		t.Fatalf("stats last updated = %q", stats.LastUpdated)
	}
}

func TestSearchEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var hits []*models.Product
	getJSON(t, ts.URL+"/materials/search/carrelage", http.StatusOK, &hits)
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}

	var none []*models.Product
	getJSON(t, ts.URL+"/materials/search/zzz", http.StatusOK, &none)
	if len(none) != 0 {
		t.Fatalf("no-match search = %v, want empty 200", none)
	}
}

func TestListingEndpoints(t *testing.T) {
	ts := newTestServer(t)

	var suppliers []string
	getJSON(t, ts.URL+"/suppliers", http.StatusOK, &suppliers)
	if len(suppliers) != 2 || suppliers[0] != "castorama" {
		t.Fatalf("suppliers = %v", suppliers)
	}

	var categories map[string][]string
	getJSON(t, ts.URL+"/categories", http.StatusOK, &categories)
	if len(categories["castorama"]) != 2 {
		t.Fatalf("categories = %v", categories)
	}
}

func TestHealthAndRoot(t *testing.T) {
	ts := newTestServer(t)

	var health map[string]string
	getJSON(t, ts.URL+"/health", http.StatusOK, &health)
	if health["status"] != "healthy" || health["timestamp"] == "" {
		t.Fatalf("health = %v", health)
	}

	var root map[string]string
	getJSON(t, ts.URL+"/", http.StatusOK, &root)
	if root["message"] == "" {
		t.Fatalf("root = %v", root)
	}

	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET /nope status = %d, want 404", resp.StatusCode)
	}
}

func TestCORSHeaders(t *testing.T) {
	svc := newTestService(t, flatDataset(testProducts()))
	server := NewServer(svc, config.API{Addr: ":0", CORSOrigins: []string{"https://app.example"}}, nil, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/materials")
	if err != nil {
		t.Fatalf("GET /materials: %v", err)
	}
	resp.Body.Close()
	if origin := resp.Header.Get("Access-Control-Allow-Origin"); origin != "https://app.example" {
		t.Fatalf("allow-origin = %q", origin)
	}

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/materials", nil)
	if err != nil {
		t.Fatalf("build OPTIONS request: %v", err)
	}
	preflight, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /materials: %v", err)
	}
	preflight.Body.Close()
	if preflight.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", preflight.StatusCode)
	}
}
