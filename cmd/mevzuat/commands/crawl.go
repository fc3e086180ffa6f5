package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"mevzuat/internal/config"
	"mevzuat/internal/crawler"
	"mevzuat/internal/models"
	"mevzuat/internal/storage"
)

var (
	crawlType   string
	crawlStart  int
	crawlLength int
	crawlWrite  bool
)

func init() {
	crawlCmd.Flags().StringVar(&crawlType, "type", string(models.TypeKanun), "Document type selector (MevzuatTur).")
	crawlCmd.Flags().IntVar(&crawlStart, "start", 0, "Offset of the page to fetch.")
	crawlCmd.Flags().IntVar(&crawlLength, "length", 0, "Page length (defaults to ingest.page_length).")
	crawlCmd.Flags().BoolVar(&crawlWrite, "write", true, "Write the enriched page to output.dir.")
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [--type <selector>] [--start <offset>] [--length <n>]",
	Short: "Fetches one list page and the text of every record on it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setupCommand(func(cfg *config.Config) {
			if crawlLength > 0 {
				cfg.Ingest.PageLength = crawlLength
			}
		})
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		documentType := models.DocumentType(crawlType)

		if !documentType.IsKnown() {
			log.Warn("unknown document type, sending it anyway", "document_type", documentType)
		}

		client, err := crawler.NewClient(cfg.Source, log)
		if err != nil {
			return err
		}

		auth, err := crawler.NewAuthenticator(cfg.Source, log)
		if err != nil {
			return err
		}

		creds := crawler.AcquireCredentials(ctx, auth, log)
		log.Info("session acquired", "token", creds.Preview(), "cookies", creds.CookieNames())

		page := client.FetchPage(ctx, creds, crawler.PageQuery{
			DocumentType: documentType,
			Start:        crawlStart,
			Length:       cfg.Ingest.PageLength,
		})

		switch page.Status {
		case crawler.PageOK:
		case crawler.PageExhausted:
			fmt.Printf("No records at offset %d (total %d)\n", crawlStart, page.Total)
			return nil
		default:
			return fmt.Errorf("page %s (status %d): %w", page.Status, page.StatusCode, page.Err)
		}

		log.Info("page fetched", "records", len(page.Records), "total", page.Total)

		texts := client.FetchTexts(ctx, creds, page.Records)

		t := newTable()
		t.SetTitle(fmt.Sprintf("%s @ %d (%d of %d)", documentType, crawlStart, len(page.Records), page.Total))
		t.AppendHeader(table.Row{"No", "Title", "Gazette", "Text", "Status"})

		for _, rec := range texts.Enriched {
			t.AppendRow(table.Row{rec.DocumentNo, text.Trim(rec.Title, 60), rec.GazetteDate, len([]rune(rec.Text)), "ok"})
		}

		for _, f := range texts.Failed {
			t.AppendRow(table.Row{f.Record.DocumentNo, text.Trim(f.Record.Title, 60), f.Record.GazetteDate, 0, f.Err.Error()})
		}

		t.Render()

		if !crawlWrite || len(texts.Enriched) == 0 {
			return nil
		}

		path, err := storage.NewFileStore(cfg).WriteBatch(models.Batch{
			CreatedAt:    time.Now(),
			DocumentType: documentType,
			Records:      texts.Enriched,
			Sequence:     1,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Saved %d records to %s\n", len(texts.Enriched), path)

		return nil
	},
}
