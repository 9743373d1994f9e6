package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/VivekMangukiya11/donizo-material-scraper/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the query service over HTTP. All endpoints are
// read-only; the dataset is owned by the scraping run.
type Server struct {
	svc      *Service
	logger   *slog.Logger
	cors     []string
	registry *prometheus.Registry

	httpServer *http.Server
}

// NewServer builds the API server. registry may be nil; when set, the
// run's metrics are exposed on /metrics.
func NewServer(svc *Service, cfg config.API, logger *slog.Logger, registry *prometheus.Registry) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:      svc,
		logger:   logger,
		cors:     cfg.CORSOrigins,
		registry: registry,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Handler builds the route table wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /materials", s.handleMaterials)
	mux.HandleFunc("GET /materials/stats", s.handleStats)
	mux.HandleFunc("GET /materials/search/{query}", s.handleSearch)
	mux.HandleFunc("GET /materials/{category}", s.handleCategory)
	mux.HandleFunc("GET /categories", s.handleCategories)
	mux.HandleFunc("GET /suppliers", s.handleSuppliers)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return s.corsMiddleware(s.loggingMiddleware(mux))
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("query api listening", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "material scraper query API",
		"version": "1.0.0",
	})
}

func (s *Server) handleMaterials(w http.ResponseWriter, r *http.Request) {
	products, err := s.svc.Materials(filterFromRequest(r))
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	products, err := s.svc.ByCategory(category, filterFromRequest(r))
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"detail": "no products found for category: " + category,
			})
			return
		}
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	products, err := s.svc.Search(r.PathValue("query"), filterFromRequest(r))
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats()
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.svc.Categories()
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := s.svc.Suppliers()
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suppliers)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.logger.Error("query failed", slog.Any("error", err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"detail": "internal server error",
	})
}

func filterFromRequest(r *http.Request) Filter {
	q := r.URL.Query()
	return Filter{
		Supplier: q.Get("supplier"),
		Category: q.Get("category"),
		Offset:   intParam(q.Get("offset"), 0),
		Limit:    intParam(q.Get("limit"), DefaultLimit),
	}
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", recorder.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origin := "*"
	if len(s.cors) > 0 {
		origin = s.cors[0]
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
