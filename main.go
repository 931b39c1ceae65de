package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"festival-scraper/config"
	"festival-scraper/metrics"
	"festival-scraper/models"
	"festival-scraper/pipeline"
	"festival-scraper/scraper"
	"festival-scraper/services"
	"festival-scraper/sources"
	"festival-scraper/storage"
	"festival-scraper/utils"
)

const (
	scrollSettle = 1500 * time.Millisecond
	fetchBackoff = 2 * time.Second
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:           "festscrape",
		Short:         "Festival listing ingestion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(runCmd(cfg, logger))
	rootCmd.AddCommand(sourcesCmd(cfg))
	rootCmd.AddCommand(migrateCmd(cfg, logger))
	rootCmd.AddCommand(runsCmd(cfg, logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func runCmd(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	var all, resume, dryRun bool
	cmd := &cobra.Command{
		Use:   "run [source...]",
		Short: "Scrape the named sources, or every enabled source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources(cmd.Context(), cfg, logger, args, all, resume, dryRun)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&all, "all", false, "run every known source, including disabled ones")
	flags.IntVar(&cfg.MaxPages, "max-pages", cfg.MaxPages, "listing pages per source (0 = until exhausted)")
	flags.IntVar(&cfg.DelayMs, "delay-ms", cfg.DelayMs, "minimum delay before each request")
	flags.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "records per upsert batch")
	flags.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "sources run at once")
	flags.IntVar(&cfg.DetailConcurrency, "detail-concurrency", cfg.DetailConcurrency, "parallel detail fetches per source")
	flags.BoolVar(&resume, "resume", false, "continue from the checkpoint")
	flags.StringVar(&cfg.CheckpointPath, "checkpoint", cfg.CheckpointPath, "checkpoint file")
	flags.BoolVar(&dryRun, "dry-run", false, "scrape without touching the database")
	return cmd
}

func runSources(ctx context.Context, cfg *config.Config, logger *utils.Logger, names []string, all, resume, dryRun bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	entries := registry.All()
	if !all {
		if entries, err = registry.Select(names); err != nil {
			return err
		}
	}
	if len(entries) == 0 {
		return errors.New("no sources selected")
	}

	logger.Info("=== Festival ingestion starting ===")
	logger.Info("Config: sources %d | concurrency %d | detail %d | delay %dms | batch %d | max pages %d",
		len(entries), cfg.Concurrency, cfg.DetailConcurrency, cfg.DelayMs, cfg.BatchSize, cfg.MaxPages)

	var (
		store storage.FestivalStore = storage.DiscardStore{}
		runs  storage.RunStore
		cp    *pipeline.Checkpoint
	)
	if dryRun {
		logger.Warn("Dry run: nothing is written to the database")
	} else {
		sqlStore, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer sqlStore.Close()
		store, runs = sqlStore, sqlStore

		if cfg.CheckpointPath != "" {
			if cp, err = pipeline.LoadCheckpoint(cfg.CheckpointPath); err != nil {
				return err
			}
		}
	}
	if resume && cp == nil {
		return errors.New("--resume needs a checkpoint file and a database")
	}

	var raw storage.RawRecordWriter
	if cfg.CSVOutputPath != "" {
		csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			return fmt.Errorf("failed to create CSV writer: %w", err)
		}
		defer csvWriter.Close()
		raw = csvWriter
		logger.Info("Raw listings → %s", cfg.CSVOutputPath)
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	retry := &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   fetchBackoff,
		MaxDelay:    30 * time.Second,
		Jitter:      0.3,
	}

	var chrome *scraper.ChromeBrowser
	if needsBrowser(entries) {
		chrome, err = scraper.NewChromeBrowser(scraper.BrowserConfig{
			ChromeBin: cfg.ChromeBin,
			Headless:  cfg.Headless,
			UserAgent: cfg.UserAgent,
		}, nil, retry, logger)
		if err != nil {
			logger.Error("Chrome unavailable, browser sources will fail: %v", err)
		} else {
			defer chrome.Close()
		}
	}

	client := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	transport := func(e sources.Entry) (scraper.Fetcher, scraper.Browser) {
		delay := cfg.Delay()
		if e.Delay > 0 {
			delay = e.Delay
		}
		pacer := scraper.NewPacer(cfg.RequestsPerMinute, utils.DelayWindow{Min: delay, Max: delay + cfg.DelayJitter()})
		fetcher := scraper.NewHTTPFetcher(client, pacer, retry, logger)
		if chrome == nil {
			return fetcher, nil
		}
		return fetcher, chrome.WithPacer(pacer)
	}

	orchestrator := pipeline.NewOrchestrator(store, runs, raw, cp, transport, pipeline.Options{
		Concurrency:       cfg.Concurrency,
		DetailConcurrency: cfg.DetailConcurrency,
		MaxPages:          cfg.MaxPages,
		BatchSize:         cfg.BatchSize,
		StableIterations:  cfg.ScrollStableIters,
		MaxClicks:         cfg.LoadMoreMaxClicks,
		Settle:            scrollSettle,
		ExtraWait:         utils.DelayWindow{Min: 2 * time.Second, Max: 4 * time.Second},
		Fetch: scraper.FetchOptions{
			Timeout:        cfg.PageTimeout(),
			UserAgent:      cfg.UserAgent,
			DismissConsent: true,
		},
		Resume: resume,
	}, logger)

	results := orchestrator.Run(ctx, entries)

	reportSvc := services.NewReportService(logger, os.Stdout)
	reportSvc.Print(reportSvc.Generate(results))

	failed := 0
	for _, m := range results {
		if m.Status == models.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(results))
	}
	return nil
}

func sourcesCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tLOCALE\tPAGINATION\tBROWSER\tENABLED")
			for _, e := range registry.All() {
				spec := e.Adapter.Pagination()
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\n", e.Name(), e.Adapter.Locale(), spec.Kind, spec.NeedsBrowser(), e.Enabled)
			}
			return w.Flush()
		},
	}
}

func migrateCmd(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the festivals and source_runs tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			logger.Info("Schema ready on %s", cfg.DBDriver)
			return nil
		},
	}
}

func runsCmd(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent source runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSOURCE\tSTATUS\tSEEN\tNEW\tUPDATED\tDUPES\tERRORS\tRUN")
			for _, m := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
					m.StartedAt.Local().Format("2006-01-02 15:04"), m.Source, m.Status,
					m.ListingsSeen, m.UniquesWritten, m.Updated, m.DuplicatesSuppressed, m.Errors, m.RunID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func loadRegistry(cfg *config.Config) (*sources.Registry, error) {
	catalog, err := config.LoadSourcesFile(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	return sources.Default(catalog)
}

// openStore connects and migrates, so every command sees the current schema.
func openStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*storage.SQLStore, error) {
	if cfg.DBDriver == storage.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	store, err := storage.Open(ctx, cfg.DBDriver, cfg.DSN(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.DBDriver, err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func needsBrowser(entries []sources.Entry) bool {
	for _, e := range entries {
		if e.Adapter.Pagination().NeedsBrowser() {
			return true
		}
	}
	return false
}

func serveMetrics(addr string, logger *utils.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger.Info("[metrics] Serving on %s/metrics", addr)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("[metrics] Server stopped: %v", err)
	}
}
