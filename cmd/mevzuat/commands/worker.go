package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mevzuat/internal/archive"
	"mevzuat/internal/config"
	"mevzuat/internal/crawler"
	"mevzuat/internal/hub"
	"mevzuat/internal/ingest"
	"mevzuat/internal/logger"
	"mevzuat/internal/metrics"
	"mevzuat/internal/models"
	"mevzuat/internal/resilience"
	"mevzuat/internal/storage"
)

var (
	workerTypes          []string
	workerStartOffset    int
	workerMaxPages       int
	workerPageLength     int
	workerFlushThreshold int
	workerUpload         bool
	workerRepoID         string
	workerArchiveDSN     string
	workerMetricsAddr    string
)

func init() {
	flags := workerCmd.Flags()
	flags.StringSliceVar(&workerTypes, "types", nil, "Document types to ingest (overrides ingest.document_types).")
	flags.IntVar(&workerStartOffset, "start-offset", 0, "Offset to resume from.")
	flags.IntVar(&workerMaxPages, "max-pages", 0, "Stop after this many pages per type (0 = unlimited).")
	flags.IntVar(&workerPageLength, "page-length", 0, "Records per list page.")
	flags.IntVar(&workerFlushThreshold, "flush-threshold", 0, "Records per flushed batch.")
	flags.BoolVar(&workerUpload, "upload", false, "Push every flushed batch to the hub.")
	flags.StringVar(&workerRepoID, "repo", "", "Dataset repository (overrides hub.repo_id).")
	flags.StringVar(&workerArchiveDSN, "archive-dsn", "", "postgres:// or sqlite:// archive (overrides archive.dsn).")
	flags.StringVar(&workerMetricsAddr, "metrics-addr", "", "Serve /metrics on this address (overrides metrics.addr).")
	rootCmd.AddCommand(workerCmd)
}

var workerCmd = &cobra.Command{
	Use:   "worker [--types Kanun,KHK] [--upload]",
	Short: "Runs the ingestion loop: paginate, enrich, write and optionally archive and upload.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setupCommand(func(cfg *config.Config) {
			applyWorkerFlags(cmd, cfg)
		})
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		runID := uuid.NewString()
		log = log.With("run_id", runID)

		log.Info("🚀 Starting mevzuat worker", "config", cfg.String())

		ingestMetrics := metrics.NewIngestMetrics(runID)
		if cfg.Metrics.Addr != "" {
			stop := serveMetrics(cfg.Metrics.Addr, ingestMetrics, log)
			defer stop()
		}

		deps, closeDeps, err := buildDeps(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeDeps()

		deps.Metrics = ingestMetrics

		loop, err := ingest.NewLoop(deps, ingest.Options{
			RunID:          runID,
			StartOffset:    cfg.Ingest.StartOffset,
			PageLength:     cfg.Ingest.PageLength,
			FlushThreshold: cfg.Ingest.FlushThreshold,
			MaxPages:       cfg.Ingest.MaxPages,
			MaxReauth:      cfg.Ingest.MaxReauth,
		})
		if err != nil {
			return err
		}

		types := make([]models.DocumentType, 0, len(cfg.Ingest.DocumentTypes))
		for _, name := range cfg.Ingest.DocumentTypes {
			dt := models.DocumentType(strings.TrimSpace(name))
			if !dt.IsKnown() {
				log.Warn("unknown document type, sending it anyway", "document_type", dt)
			}
			types = append(types, dt)
		}

		started := time.Now()
		summaries, runErr := loop.RunAll(ctx, types)

		printSummaries(summaries, time.Since(started))

		if runErr != nil {
			log.Error("❌ worker stopped", "error", runErr)
			return runErr
		}

		log.Info("✨ Worker complete", "duration", time.Since(started).String())

		return nil
	},
}

func applyWorkerFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("types") {
		cfg.Ingest.DocumentTypes = workerTypes
	}
	if flags.Changed("start-offset") {
		cfg.Ingest.StartOffset = workerStartOffset
	}
	if flags.Changed("max-pages") {
		cfg.Ingest.MaxPages = workerMaxPages
	}
	if flags.Changed("page-length") {
		cfg.Ingest.PageLength = workerPageLength
	}
	if flags.Changed("flush-threshold") {
		cfg.Ingest.FlushThreshold = workerFlushThreshold
	}
	if flags.Changed("upload") {
		cfg.Ingest.Upload = workerUpload
	}
	if flags.Changed("repo") {
		cfg.Hub.RepoID = workerRepoID
	}
	if flags.Changed("archive-dsn") {
		cfg.Archive.DSN = workerArchiveDSN
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = workerMetricsAddr
	}
}

// buildDeps wires the loop collaborators. The returned func releases them.
func buildDeps(ctx context.Context, cfg *config.Config, log *logger.Logger) (ingest.Deps, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	client, err := crawler.NewClient(cfg.Source, log)
	if err != nil {
		return ingest.Deps{}, nil, err
	}

	auth, err := crawler.NewAuthenticator(cfg.Source, log)
	if err != nil {
		return ingest.Deps{}, nil, err
	}

	deps := ingest.Deps{
		Source:   client,
		Texts:    client,
		Auth:     auth,
		Writer:   storage.NewFileStore(cfg),
		Executor: resilience.NewExecutor(cfg.Retry.Resilience(), log),
		Logger:   log,
	}

	if cfg.Archive.DSN != "" {
		arch, err := archive.Open(ctx, cfg.Archive.DSN)
		if err != nil {
			return ingest.Deps{}, nil, err
		}

		closers = append(closers, func() {
			if err := arch.Close(); err != nil {
				log.Warn("failed to close archive", "error", err)
			}
		})

		deps.Archive = arch
	}

	if cfg.Ingest.Upload {
		uploader, err := hub.NewUploader(cfg.Hub, log)
		if err != nil {
			closeAll()
			return ingest.Deps{}, nil, err
		}

		deps.Publisher = hub.NewBatchPublisher(uploader, hub.PushOptions{
			RepoID:        cfg.Hub.RepoID,
			Split:         cfg.Hub.Split,
			CommitMessage: cfg.Hub.CommitMessage,
			Private:       cfg.Hub.Private,
		})
	}

	return deps, closeAll, nil
}

func serveMetrics(addr string, m *metrics.IngestMetrics, log *logger.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("metrics listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Warn("metrics shutdown error", "error", err)
		}
	}
}

func printSummaries(summaries []ingest.Summary, elapsed time.Duration) {
	t := newTable()
	t.SetTitle(fmt.Sprintf("📊 Summary Report (%s)", elapsed.Round(time.Second)))
	t.AppendHeader(table.Row{"Type", "Stop", "Pages", "Fetched", "Enriched", "Text failures", "Files", "Uploads", "Upload failures", "Next offset"})

	for _, s := range summaries {
		t.AppendRow(table.Row{
			s.DocumentType,
			s.StopReason,
			s.Pages,
			s.Fetched,
			s.Enriched,
			s.TextFailures,
			len(s.Files),
			s.Uploads,
			s.UploadFailures,
			s.NextOffset,
		})
	}

	t.Render()

	for _, s := range summaries {
		if s.SourceErr != nil {
			fmt.Printf("⚠️  %s: %v\n", s.DocumentType, s.SourceErr)
		}
		if s.Dropped > 0 {
			fmt.Printf("⚠️  %s: %d buffered records were not written\n", s.DocumentType, s.Dropped)
		}
	}
}
