package hub

import (
	"context"
	"fmt"

	"mevzuat/internal/models"
	"mevzuat/internal/normalizer"
)

// BatchPublisher pushes every flushed batch as its own shard of one split,
// so uploads from a long run accumulate instead of replacing each other.
type BatchPublisher struct {
	uploader *Uploader
	opts     PushOptions
}

// NewBatchPublisher creates a publisher for the ingest loop.
func NewBatchPublisher(u *Uploader, opts PushOptions) *BatchPublisher {
	return &BatchPublisher{uploader: u, opts: opts}
}

// Publish pushes batch and returns the dataset URL.
func (p *BatchPublisher) Publish(ctx context.Context, batch models.Batch) (string, error) {
	opts := p.opts
	opts.Shard = BatchShard(batch)

	if opts.CommitMessage == "" {
		opts.CommitMessage = fmt.Sprintf("Upload %d %s documents (batch %d)", batch.Len(), batch.DocumentType, batch.Sequence)
	}

	return p.uploader.PushData(ctx, normalizer.FromRecords(batch.Records), opts)
}

// BatchShard names the shard file of a batch.
func BatchShard(batch models.Batch) string {
	return fmt.Sprintf("%s-%s-%04d", batch.DocumentType, batch.CreatedAt.UTC().Format("20060102T150405Z"), batch.Sequence)
}
