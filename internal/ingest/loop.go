// Package ingest runs the pagination loop: fetch list pages, buffer records,
// and flush full batches through text enrichment, local storage, the
// optional archive and the optional publisher.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mevzuat/internal/crawler"
	"mevzuat/internal/logger"
	"mevzuat/internal/metrics"
	"mevzuat/internal/models"
	"mevzuat/internal/resilience"
)

// Loop construction errors.
var (
	ErrMissingSource        = errors.New("ingest: metadata source is required")
	ErrMissingTextSource    = errors.New("ingest: text source is required")
	ErrMissingAuthenticator = errors.New("ingest: authenticator is required")
	ErrMissingWriter        = errors.New("ingest: batch writer is required")
	ErrInvalidOptions       = errors.New("ingest: page length and flush threshold must be positive")
)

// Why the FETCHING state ended.
const (
	StopExhausted     = "exhausted"
	StopSourceFailure = "source_failure"
	StopRejected      = "rejected"
	StopMaxPages      = "max_pages"
	StopCancelled     = "cancelled"
)

// MetadataSource pages through the list endpoint.
type MetadataSource interface {
	FetchPage(ctx context.Context, creds crawler.Credentials, q crawler.PageQuery) crawler.PageResult
}

// TextSource enriches records with their document text.
type TextSource interface {
	FetchTexts(ctx context.Context, creds crawler.Credentials, records []models.Record) crawler.TextResult
}

// BatchWriter persists a flushed batch and returns where it went.
type BatchWriter interface {
	WriteBatch(batch models.Batch) (string, error)
}

// Archiver mirrors a flushed batch into a database.
type Archiver interface {
	SaveBatch(ctx context.Context, batch models.Batch) (int, error)
}

// Publisher uploads a flushed batch and returns its public location.
type Publisher interface {
	Publish(ctx context.Context, batch models.Batch) (string, error)
}

// Deps are the collaborators of a Loop. Archive, Publisher, Executor and
// Metrics are optional.
type Deps struct {
	Source    MetadataSource
	Texts     TextSource
	Auth      crawler.Authenticator
	Writer    BatchWriter
	Archive   Archiver
	Publisher Publisher
	Executor  *resilience.Executor
	Metrics   *metrics.IngestMetrics
	Logger    *logger.Logger
}

// Options tune pagination and flushing.
type Options struct {
	RunID          string
	StartOffset    int
	PageLength     int
	FlushThreshold int
	MaxPages       int
	MaxReauth      int
}

// Summary describes one finished Run.
type Summary struct {
	SourceErr       error
	RunID           string
	DocumentType    models.DocumentType
	StopReason      string
	Files           []string
	Pages           int
	Fetched         int
	Flushes         int
	Enriched        int
	TextFailures    int
	Uploads         int
	UploadFailures  int
	ArchiveFailures int
	Reauths         int
	Dropped         int
	NextOffset      int
}

// Loop is the ingestion state machine. It is not safe for concurrent Runs.
type Loop struct {
	deps Deps
	log  *logger.Logger
	now  func() time.Time
	opts Options
}

// NewLoop validates deps and options.
func NewLoop(deps Deps, opts Options) (*Loop, error) {
	switch {
	case deps.Source == nil:
		return nil, ErrMissingSource
	case deps.Texts == nil:
		return nil, ErrMissingTextSource
	case deps.Auth == nil:
		return nil, ErrMissingAuthenticator
	case deps.Writer == nil:
		return nil, ErrMissingWriter
	case opts.PageLength < 1 || opts.FlushThreshold < 1:
		return nil, ErrInvalidOptions
	}

	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}

	if deps.Executor == nil {
		deps.Executor = resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1}, deps.Logger)
	}

	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	return &Loop{
		deps: deps,
		log:  deps.Logger.With("run_id", opts.RunID),
		now:  time.Now,
		opts: opts,
	}, nil
}

// RunID identifies this loop in logs, metrics and summaries.
func (l *Loop) RunID() string {
	return l.opts.RunID
}

// Run ingests one document type until the source is exhausted, fails or the
// page cap is reached, then drains the remaining buffer.
// The error is non-nil only for cancellation or a failed local write.
func (l *Loop) Run(ctx context.Context, documentType models.DocumentType) (Summary, error) {
	log := l.log.With("document_type", documentType)
	summary := Summary{RunID: l.opts.RunID, DocumentType: documentType}

	creds := crawler.AcquireCredentials(ctx, l.deps.Auth, log)

	offset := l.opts.StartOffset
	threshold := l.opts.FlushThreshold
	buffer := make([]models.Record, 0, threshold)
	reauths := 0

	log.Info("ingest started", "start_offset", offset, "page_length", l.opts.PageLength, "flush_threshold", threshold)

fetching:
	for {
		if l.opts.MaxPages > 0 && summary.Pages >= l.opts.MaxPages {
			summary.StopReason = StopMaxPages
			break
		}

		q := crawler.PageQuery{DocumentType: documentType, Start: offset, Length: l.opts.PageLength}
		result := l.fetchPage(ctx, creds, q)

		if err := ctx.Err(); err != nil {
			return l.cancelled(log, summary, offset, len(buffer), err)
		}

		switch result.Status {
		case crawler.PageOK:
			summary.Pages++
			summary.Fetched += len(result.Records)
			offset += l.opts.PageLength
			buffer = append(buffer, result.Records...)

			for len(buffer) >= threshold {
				chunk := append([]models.Record(nil), buffer[:threshold]...)
				buffer = append(buffer[:0], buffer[threshold:]...)

				if err := l.flush(ctx, log, documentType, creds, chunk, &summary); err != nil {
					summary.NextOffset = offset
					summary.Dropped = len(buffer)
					return summary, err
				}
			}

		case crawler.PageExhausted:
			summary.StopReason = StopExhausted
			break fetching

		case crawler.PageRejected:
			if reauths >= l.opts.MaxReauth {
				summary.StopReason = StopRejected
				summary.SourceErr = result.Err
				break fetching
			}

			reauths++
			summary.Reauths++
			l.deps.Metrics.ObserveReauth(documentType.String())
			log.Warn("session rejected, re-authenticating", "attempt", reauths, "offset", offset, "error", result.Err)
			creds = crawler.AcquireCredentials(ctx, l.deps.Auth, log)

		default:
			summary.StopReason = StopSourceFailure
			summary.SourceErr = result.Err
			break fetching
		}
	}

	summary.NextOffset = offset

	if len(buffer) > 0 {
		log.Info("draining buffer", "records", len(buffer))

		if err := l.flush(ctx, log, documentType, creds, buffer, &summary); err != nil {
			return summary, err
		}
	}

	log.Info("ingest finished",
		"stop_reason", summary.StopReason,
		"pages", summary.Pages,
		"fetched", summary.Fetched,
		"flushes", summary.Flushes,
		"enriched", summary.Enriched,
		"text_failures", summary.TextFailures,
		"uploads", summary.Uploads,
		"upload_failures", summary.UploadFailures,
		"next_offset", summary.NextOffset,
	)

	return summary, nil
}

// RunAll runs every document type in order and stops at the first error.
func (l *Loop) RunAll(ctx context.Context, documentTypes []models.DocumentType) ([]Summary, error) {
	summaries := make([]Summary, 0, len(documentTypes))

	for _, documentType := range documentTypes {
		summary, err := l.Run(ctx, documentType)
		summaries = append(summaries, summary)

		if err != nil {
			return summaries, fmt.Errorf("ingest %s: %w", documentType, err)
		}
	}

	return summaries, nil
}

func (l *Loop) fetchPage(ctx context.Context, creds crawler.Credentials, q crawler.PageQuery) crawler.PageResult {
	var result crawler.PageResult

	err := l.deps.Executor.Execute(ctx, "source.list", func(ctx context.Context) error {
		result = l.deps.Source.FetchPage(ctx, creds, q)
		l.deps.Metrics.ObservePage(q.DocumentType.String(), result.Status.String(), len(result.Records))

		if result.Status == crawler.PageTransient {
			return result.Err
		}

		return nil
	}, classifySourceError)

	if resilience.IsCircuitOpen(err) {
		return crawler.PageResult{Status: crawler.PageTransient, Err: err}
	}

	return result
}

func (l *Loop) flush(
	ctx context.Context,
	log *logger.Logger,
	documentType models.DocumentType,
	creds crawler.Credentials,
	records []models.Record,
	summary *Summary,
) error {
	started := l.now()

	texts := l.deps.Texts.FetchTexts(ctx, creds, records)
	summary.Enriched += len(texts.Enriched)
	summary.TextFailures += len(texts.Failed)

	defer func() {
		l.deps.Metrics.ObserveFlush(documentType.String(), len(texts.Enriched), len(texts.Failed), l.now().Sub(started))
	}()

	if len(texts.Enriched) == 0 {
		log.Warn("no record in batch could be enriched, skipping write", "records", len(records))
		return nil
	}

	summary.Flushes++

	batch := models.Batch{
		CreatedAt:    l.now(),
		DocumentType: documentType,
		Records:      texts.Enriched,
		Sequence:     summary.Flushes,
	}

	path, err := l.deps.Writer.WriteBatch(batch)
	if err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}

	summary.Files = append(summary.Files, path)
	log.Info("batch written", "path", path, "records", batch.Len(), "text_failures", len(texts.Failed))

	if l.deps.Archive != nil {
		n, err := l.deps.Archive.SaveBatch(ctx, batch)
		l.deps.Metrics.ObserveSink("archive", err)

		if err != nil {
			summary.ArchiveFailures++
			log.Error("archive failed", "path", path, "error", err)
		} else {
			log.Debug("batch archived", "rows", n)
		}
	}

	if l.deps.Publisher != nil {
		location, err := l.deps.Publisher.Publish(ctx, batch)
		l.deps.Metrics.ObserveSink("hub", err)

		if err != nil {
			summary.UploadFailures++
			log.Error("upload failed", "path", path, "error", err)
		} else {
			summary.Uploads++
			log.Info("batch uploaded", "location", location)
		}
	}

	return nil
}

func (l *Loop) cancelled(log *logger.Logger, summary Summary, offset, buffered int, err error) (Summary, error) {
	summary.StopReason = StopCancelled
	summary.NextOffset = offset
	summary.Dropped = buffered

	log.Warn("ingest cancelled, unflushed records dropped", "records", buffered, "next_offset", offset)

	return summary, err
}

func classifySourceError(err error) resilience.ErrorClassification {
	return resilience.ErrorClassification{
		Retryable:     errors.Is(err, crawler.ErrSourceUnavailable),
		RecordFailure: true,
	}
}
