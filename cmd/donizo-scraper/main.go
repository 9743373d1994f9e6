package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VivekMangukiya11/donizo-material-scraper/config"
	"github.com/VivekMangukiya11/donizo-material-scraper/query"
	"github.com/VivekMangukiya11/donizo-material-scraper/report"
	"github.com/VivekMangukiya11/donizo-material-scraper/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

const sessionIDLayout = "20060102_150405"

func main() {
	app := &cli.App{
		Name:  "donizo-scraper",
		Usage: "scrape renovation material pricing data and serve the query API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/scraper.yaml",
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{"SCRAPER_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
				EnvVars: []string{"SCRAPER_VERBOSE"},
			},
		},
		Commands: []*cli.Command{
			scrapeCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func scrapeCommand() *cli.Command {
	return &cli.Command{
		Name:  "scrape",
		Usage: "run all enabled supplier scrapers and consolidate the results",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "suppliers",
				Usage: "restrict the run to these suppliers",
			},
			&cli.StringSliceFlag{
				Name:  "categories",
				Usage: "restrict the run to these categories",
			},
			&cli.StringFlag{
				Name:  "session-id",
				Usage: "session identifier (defaults to the current timestamp)",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Prometheus metrics listen address (e.g. :9090)",
				EnvVars: []string{"SCRAPER_METRICS_ADDR"},
			},
		},
		Action: runScrape,
	}
}

func runScrape(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	applyScrapeOverrides(cfg, c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Verbose || c.Bool("verbose"))

	sessionID := c.String("session-id")
	if sessionID == "" {
		sessionID = time.Now().Format(sessionIDLayout)
	}

	logger.Info("starting scrape",
		slog.String("session_id", sessionID),
		slog.Int("suppliers", len(cfg.EnabledSuppliers())),
		slog.Int("categories", len(cfg.Categories)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	runner := worker.NewRunner(cfg, logger)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(runner.Metrics().Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		logger.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	outcome, err := runner.Run(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("scraping run: %w", err)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(outcome)
	return nil
}

func applyScrapeOverrides(cfg *config.Config, c *cli.Context) {
	if suppliers := c.StringSlice("suppliers"); len(suppliers) > 0 {
		allowed := make(map[string]struct{}, len(suppliers))
		for _, name := range suppliers {
			allowed[name] = struct{}{}
		}
		for i := range cfg.Suppliers {
			if _, ok := allowed[cfg.Suppliers[i].Name]; !ok {
				cfg.Suppliers[i].Enabled = false
			}
		}
	}
	if categories := c.StringSlice("categories"); len(categories) > 0 {
		cfg.Categories = categories
	}
	if addr := c.String("metrics-addr"); addr != "" {
		cfg.MetricsAddr = addr
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the query API over the persisted dataset",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "listen address",
				EnvVars: []string{"SCRAPER_API_ADDR"},
			},
			&cli.StringFlag{
				Name:    "dataset",
				Usage:   "path to the materials dataset file",
				EnvVars: []string{"SCRAPER_DATASET"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		// The API can serve defaults without a config file; a missing
		// file is a warning, not a startup failure.
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("configuration: %w", err)
		}
		cfg = config.DefaultConfig()
	}
	if addr := c.String("addr"); addr != "" {
		cfg.API.Addr = addr
	}
	if dataset := c.String("dataset"); dataset != "" {
		cfg.API.DatasetFile = dataset
	}
	if err := cfg.API.ValidateAPI(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Verbose || c.Bool("verbose"))

	svc, err := query.NewService(cfg.API.DatasetFile, cfg.API.CacheSize)
	if err != nil {
		return fmt.Errorf("query service: %w", err)
	}
	server := query.NewServer(svc, cfg.API, logger, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", slog.Any("error", err))
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("query api: %w", err)
	}
	return nil
}

func printSummary(outcome *worker.RunOutcome) {
	stats := outcome.Report.Stats
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Total products:  %d\n", stats.TotalProducts)
	fmt.Printf("  Suppliers:       %d\n", len(stats.Suppliers))
	for name, summary := range stats.Suppliers {
		fmt.Printf("    %-14s %d products, %d categories\n",
			name, summary.ProductsScraped, len(summary.Categories))
	}
	fmt.Printf("  Categories:      %d\n", len(stats.Categories))
	fmt.Printf("  Errors:          %d\n", stats.ErrorCount())
	printFirstErrors(stats, 5)
	fmt.Printf("  Duration:        %.2fs\n", stats.Duration)
	if outcome.Consolidated != "" {
		fmt.Printf("  Consolidated:    %s\n", outcome.Consolidated)
	}
	if outcome.ReportPath != "" {
		fmt.Printf("  Report:          %s\n", outcome.ReportPath)
	}
	fmt.Println(separator)
}

func printFirstErrors(stats *report.Stats, n int) {
	for i, scrapeErr := range stats.Errors {
		if i >= n {
			fmt.Printf("    ... and %d more\n", len(stats.Errors)-n)
			return
		}
		fmt.Printf("    - [%s] %s\n", scrapeErr.Supplier, scrapeErr.Error)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
