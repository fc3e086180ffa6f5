package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mevzuat/internal/crawler"
	"mevzuat/internal/metrics"
	"mevzuat/internal/models"
	"mevzuat/internal/resilience"
)

type scriptedSource struct {
	steps   []crawler.PageResult
	queries []crawler.PageQuery
	tokens  []string
}

func (s *scriptedSource) FetchPage(_ context.Context, creds crawler.Credentials, q crawler.PageQuery) crawler.PageResult {
	s.queries = append(s.queries, q)
	s.tokens = append(s.tokens, creds.Token)

	if len(s.steps) == 0 {
		return crawler.PageResult{Status: crawler.PageExhausted}
	}

	step := s.steps[0]
	s.steps = s.steps[1:]

	return step
}

func okPage(start, n int) crawler.PageResult {
	records := make([]models.Record, n)
	for i := range records {
		no := fmt.Sprint(start + i + 1)
		records[i] = models.Record{DocumentNo: no, URLParams: "MevzuatNo=" + no, DocumentType: "Kanun"}
	}

	return crawler.PageResult{Status: crawler.PageOK, Records: records}
}

func transientPage() crawler.PageResult {
	return crawler.PageResult{Status: crawler.PageTransient, Err: fmt.Errorf("%w: 503", crawler.ErrSourceUnavailable)}
}

func rejectedPage() crawler.PageResult {
	return crawler.PageResult{Status: crawler.PageRejected, Err: fmt.Errorf("%w: 419", crawler.ErrSessionRejected)}
}

type fakeTexts struct {
	fail  map[string]bool
	calls int
}

func (f *fakeTexts) FetchTexts(_ context.Context, _ crawler.Credentials, records []models.Record) crawler.TextResult {
	f.calls++

	var result crawler.TextResult
	for _, rec := range records {
		if f.fail[rec.DocumentNo] {
			result.Failed = append(result.Failed, crawler.TextFailure{Record: rec, Err: crawler.ErrNoText})
			continue
		}

		rec.Text = "Madde 1 " + rec.DocumentNo
		rec.URL = "https://www.mevzuat.gov.tr/mevzuat?" + rec.URLParams
		result.Enriched = append(result.Enriched, rec)
	}

	return result
}

type memoryWriter struct {
	source        *scriptedSource
	err           error
	batches       []models.Batch
	callsAtWrites []int
}

func (w *memoryWriter) WriteBatch(batch models.Batch) (string, error) {
	if w.err != nil {
		return "", w.err
	}

	w.batches = append(w.batches, batch)
	if w.source != nil {
		w.callsAtWrites = append(w.callsAtWrites, len(w.source.queries))
	}

	return fmt.Sprintf("out/%s_%04d.json", batch.DocumentType, batch.Sequence), nil
}

func (w *memoryWriter) sizes() []int {
	sizes := make([]int, 0, len(w.batches))
	for _, b := range w.batches {
		sizes = append(sizes, b.Len())
	}

	return sizes
}

type countingPublisher struct {
	err     error
	batches []models.Batch
}

func (p *countingPublisher) Publish(_ context.Context, batch models.Batch) (string, error) {
	p.batches = append(p.batches, batch)
	if p.err != nil {
		return "", p.err
	}

	return "https://huggingface.co/datasets/acme/mevzuat", nil
}

type countingArchive struct {
	err   error
	calls int
}

func (a *countingArchive) SaveBatch(_ context.Context, batch models.Batch) (int, error) {
	a.calls++
	return batch.Len(), a.err
}

type countingAuth struct {
	calls int
}

func (a *countingAuth) Authenticate(context.Context) (crawler.Credentials, error) {
	a.calls++
	return crawler.Credentials{Token: fmt.Sprintf("tok-%d", a.calls)}, nil
}

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1,
	}, nil)
}

type harness struct {
	source    *scriptedSource
	texts     *fakeTexts
	writer    *memoryWriter
	publisher *countingPublisher
	auth      *countingAuth
}

func newHarness(steps ...crawler.PageResult) *harness {
	source := &scriptedSource{steps: steps}

	return &harness{
		source:    source,
		texts:     &fakeTexts{fail: map[string]bool{}},
		writer:    &memoryWriter{source: source},
		publisher: &countingPublisher{},
		auth:      &countingAuth{},
	}
}

func (h *harness) loop(t *testing.T, opts Options) *Loop {
	t.Helper()

	l, err := NewLoop(Deps{
		Source:    h.source,
		Texts:     h.texts,
		Auth:      h.auth,
		Writer:    h.writer,
		Publisher: h.publisher,
		Executor:  fastExecutor(),
		Metrics:   metrics.NewIngestMetrics("test"),
	}, opts)
	require.NoError(t, err)

	return l
}

func TestRun_FlushesOnceWhileFetchingAndOnceOnDrain(t *testing.T) {
	h := newHarness(okPage(0, 40), okPage(40, 40), okPage(80, 40))
	l := h.loop(t, Options{PageLength: 40, FlushThreshold: 100})

	summary, err := l.Run(context.Background(), models.TypeKanun)
	require.NoError(t, err)

	assert.Equal(t, []int{100, 20}, h.writer.sizes())
	// first flush right after the third page, second after the exhausted probe
	assert.Equal(t, []int{3, 4}, h.writer.callsAtWrites)
	assert.Equal(t, StopExhausted, summary.StopReason)
	assert.Equal(t, 3, summary.Pages)
	assert.Equal(t, 120, summary.Fetched)
	assert.Equal(t, 2, summary.Flushes)
	assert.Equal(t, 120, summary.NextOffset)
	assert.Len(t, h.publisher.batches, 2)
}

func TestRun_SinglePageThenEmpty(t *testing.T) {
	h := newHarness(okPage(0, 100), crawler.PageResult{Status: crawler.PageExhausted})
	l := h.loop(t, Options{PageLength: 100, FlushThreshold: 100})

	summary, err := l.Run(context.Background(), models.TypeKanun)
	require.NoError(t, err)

	require.Len(t, h.writer.batches, 1)
	batch := h.writer.batches[0]
	require.Equal(t, 100, batch.Len())
	for _, rec := range batch.Records {
		assert.True(t, rec.Enriched())
		assert.NotEmpty(t, rec.Text)
	}

	require.Len(t, h.publisher.batches, 1)
	assert.Equal(t, batch.Records, h.publisher.batches[0].Records)
	assert.Equal(t, 1, summary.Uploads)
	assert.Equal(t, []string{"out/Kanun_0001.json"}, summary.Files)
}

func TestRun_PaginatesFromStartOffset(t *testing.T) {
	h := newHarness(okPage(200, 10), okPage(210, 10))
	l := h.loop(t, Options{StartOffset: 200, PageLength: 10, FlushThreshold: 50})

	_, err := l.Run(context.Background(), models.TypeKHK)
	require.NoError(t, err)

	require.Len(t, h.source.queries, 3)
	assert.Equal(t, 200, h.source.queries[0].Start)
	assert.Equal(t, 210, h.source.queries[1].Start)
	assert.Equal(t, 220, h.source.queries[2].Start)
	assert.Equal(t, models.TypeKHK, h.source.queries[0].DocumentType)
}

func TestRun_RetriesTransientPages(t *testing.T) {
	h := newHarness(transientPage(), transientPage(), okPage(0, 5))
	l := h.loop(t, Options{PageLength: 5, FlushThreshold: 100})

	summary, err := l.Run(context.Background(), models.TypeKanun)
	require.NoError(t, err)

	assert.Equal(t, StopExhausted, summary.StopReason)
	assert.Equal(t, 5, summary.Fetched)
	assert.Equal(t, []int{5}, h.writer.sizes())
	assert.NoError(t, summary.SourceErr)
}

func TestRun_GivesUpAfterRetriesAndDrains(t *testing.T) {
	h := newHarness(okPage(0, 7), transientPage(), transientPage(), transientPage())
	l := h.loop(t, Options{PageLength: 7, FlushThreshold: 100})

	summary, err := l.Run(context.Background(), models.TypeKanun)
	require.NoError(t, err)

	assert.Equal(t, StopSourceFailure, summary.StopReason)
	require.ErrorIs(t, summary.SourceErr, crawler.ErrSourceUnavailable)
	assert.Equal(t, []int{7}, h.writer.sizes())
	assert.Len(t, h.source.queries, 4)
}

func TestRun_ReauthenticatesOnRejection(t *testing.T) {
	h := newHarness(okPage(0, 10), rejectedPage(), okPage(10, 10))
	l := h.loop(t, Options{PageLength: 10, FlushThreshold: 100, MaxReauth: 1})

	summary, err := l.Run(context.Background(), models.TypeKanun)
	require.NoError(t, err)

	assert.Equal(t, 2, h.auth.calls)
	assert.Equal(t, 1, summary.Reauths)
	assert.Equal(t, []string{"tok-1", "tok-1", "tok-2", "tok-2"}, h.source.tokens)
	// the rejected offset is retried
	assert.Equal(t, 10, h.source.queries[1].Start)
	assert.Equal(t, 10, h.source.queries[2].Start)
	assert.Equal(t, 20, summary.Fetched)
	assert.Equal(t, StopExhausted, summary.StopReason)
}

func TestRun_StopsWhenReauthBudgetSpent(t *testing.T) {
	h := newHarness(okPage(0, 3), rejectedPage(), rejectedPage())
	l := h.loop(t, Options{PageLength: 3, FlushThreshold: 100, MaxReauth: 1})

	summary, err := l.Run(context.Background(), models.TypeKanun)
	require.NoError(t, err)

	assert.Equal(t, StopRejected, summary.StopReason)
	require.ErrorIs(t, summary.SourceErr, crawler.ErrSessionRejected)
	assert.Equal(t, []int{3}, h.writer.sizes())
}

func TestRun_UploadFailureDoesNotAbort(t *testing.T) {
	h := newHarness(okPage(0, 10), okPage(10, 10), okPage(20, 10))
	h.publisher.err = errors.New("hub unavailable")
	archive := &countingArchive{err: errors.New("db down")}

	l, err := NewLoop(Deps{
		Source:    h.source,
		Texts:     h.texts,
		Auth:      h.auth,
		Writer:    h.writer,
		Archive:   archive,
		Publisher: h.publisher,
	}, Options{PageLength: 10, FlushThreshold: 10})
	require.NoError(t, err)

	summary, err := l.Run(context.Background(), models.TypeKanun)
	require.NoError(t, err)

	assert.Equal(t, []int{10, 10, 10}, h.writer.sizes())
	assert.Equal(t, 3, summary.UploadFailures)
	assert.Equal(t, 0, summary.Uploads)
	assert.Equal(t, 3, summary.ArchiveFailures)
	assert.Equal(t, 3, archive.calls)
}

func TestRun_TextFailuresAreCountedAndSkipped(t *testing.T) {
	h := newHarness(okPage(0, 4))
	h.texts.fail["2"] = true
	h.texts.fail["4"] = true
	l := h.loop(t, Options{PageLength: 4, FlushThreshold: 4})

	summary, err := l.Run(context.Background(), models.TypeKanun)
	require.NoError(t, err)

	require.Len(t, h.writer.batches, 1)
	assert.Equal(t, 2, h.writer.batches[0].Len())
	assert.Equal(t, 2, summary.Enriched)
	assert.Equal(t, 2, summary.TextFailures)
}

func TestRun_AllTextsFailedWritesNothing(t *testing.T) {
	h := newHarness(okPage(0, 1))
	h.texts.fail["1"] = true
	l := h.loop(t, Options{PageLength: 1, FlushThreshold: 1})

	summary, err := l.Run(context.Background(), models.TypeKanun)
	require.NoError(t, err)

	assert.Empty(t, h.writer.batches)
	assert.Empty(t, h.publisher.batches)
	assert.Equal(t, 0, summary.Flushes)
}

func TestRun_MaxPages(t *testing.T) {
	h := newHarness(okPage(0, 5), okPage(5, 5), okPage(10, 5))
	l := h.loop(t, Options{PageLength: 5, FlushThreshold: 100, MaxPages: 2})

	summary, err := l.Run(context.Background(), models.TypeKanun)
	require.NoError(t, err)

	assert.Equal(t, StopMaxPages, summary.StopReason)
	assert.Len(t, h.source.queries, 2)
	assert.Equal(t, []int{10}, h.writer.sizes())
	assert.Equal(t, 10, summary.NextOffset)
}

func TestRun_WriteFailureAborts(t *testing.T) {
	h := newHarness(okPage(0, 2), okPage(2, 2))
	h.writer.err = errors.New("disk full")
	l := h.loop(t, Options{PageLength: 2, FlushThreshold: 2})

	_, err := l.Run(context.Background(), models.TypeKanun)
	require.Error(t, err)
	assert.Len(t, h.source.queries, 1)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(okPage(0, 2))
	l := h.loop(t, Options{PageLength: 2, FlushThreshold: 100})

	summary, err := l.Run(ctx, models.TypeKanun)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StopCancelled, summary.StopReason)
	assert.Empty(t, h.writer.batches)
}

func TestRunAll(t *testing.T) {
	h := newHarness(okPage(0, 3), crawler.PageResult{Status: crawler.PageExhausted}, okPage(0, 2))
	l := h.loop(t, Options{PageLength: 3, FlushThreshold: 100})

	summaries, err := l.RunAll(context.Background(), []models.DocumentType{models.TypeKanun, models.TypeTuzuk})
	require.NoError(t, err)

	require.Len(t, summaries, 2)
	assert.Equal(t, 3, summaries[0].Fetched)
	assert.Equal(t, 2, summaries[1].Fetched)
	assert.Equal(t, summaries[0].RunID, summaries[1].RunID)
	assert.Equal(t, models.TypeTuzuk, h.writer.batches[1].DocumentType)
}

func TestNewLoop_Validation(t *testing.T) {
	h := newHarness()
	deps := Deps{Source: h.source, Texts: h.texts, Auth: h.auth, Writer: h.writer}

	_, err := NewLoop(deps, Options{PageLength: 0, FlushThreshold: 1})
	require.ErrorIs(t, err, ErrInvalidOptions)

	missing := deps
	missing.Writer = nil
	_, err = NewLoop(missing, Options{PageLength: 1, FlushThreshold: 1})
	require.ErrorIs(t, err, ErrMissingWriter)

	l, err := NewLoop(deps, Options{PageLength: 1, FlushThreshold: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, l.RunID())
}
