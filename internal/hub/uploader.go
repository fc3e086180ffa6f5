package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mevzuat/internal/config"
	"mevzuat/internal/logger"
	"mevzuat/internal/normalizer"
)

// DefaultSplit is used when PushOptions.Split is empty.
const DefaultSplit = "train"

// ErrNoSplits is returned by PushSplits when the map is empty.
var ErrNoSplits = errors.New("at least one split is required")

// PushOptions controls a single push.
type PushOptions struct {
	RepoID        string
	Split         string
	CommitMessage string
	// Shard names the data file inside the split. Empty means the split is
	// a single file that each push replaces.
	Shard   string
	Private bool
}

// Uploader normalizes records and pushes them to the hub.
type Uploader struct {
	client    Client
	logger    *logger.Logger
	processor *normalizer.Processor
	endpoint  string
}

// NewUploader creates an uploader backed by the hub HTTP API.
func NewUploader(cfg config.HubConfig, log *logger.Logger) (*Uploader, error) {
	if log == nil {
		log = logger.Discard()
	}

	client, err := NewHTTPClient(cfg.Endpoint, cfg.Token(), cfg.GetTimeout(), log)
	if err != nil {
		return nil, err
	}

	return NewUploaderWithClient(client, cfg.Endpoint, log), nil
}

// NewUploaderWithClient creates an uploader with a custom client (useful for testing).
func NewUploaderWithClient(client Client, endpoint string, log *logger.Logger) *Uploader {
	if log == nil {
		log = logger.Discard()
	}

	return &Uploader{
		client:    client,
		logger:    log.With("component", "uploader"),
		processor: normalizer.NewProcessor(),
		endpoint:  strings.TrimRight(endpoint, "/"),
	}
}

// PrepareDataset normalizes src into an upload-ready table.
func (u *Uploader) PrepareDataset(src normalizer.Source) (*normalizer.Table, error) {
	table, err := u.processor.Process(src)
	if err != nil {
		return nil, fmt.Errorf("prepare dataset: %w", err)
	}

	return table, nil
}

// DatasetURL returns the public page of repoID.
func (u *Uploader) DatasetURL(repoID string) string {
	return u.endpoint + "/datasets/" + repoID
}

// PushData normalizes src and pushes it as one split. It returns the dataset URL.
func (u *Uploader) PushData(ctx context.Context, src normalizer.Source, opts PushOptions) (string, error) {
	split := splitName(opts.Split)

	table, err := u.PrepareDataset(src)
	if err != nil {
		u.logger.Error("failed to prepare dataset", "repo_id", opts.RepoID, "error", err)
		return "", err
	}

	message := opts.CommitMessage
	if message == "" {
		message = fmt.Sprintf("Upload Turkish legislation dataset with %d documents", table.Len())
	}

	return u.push(ctx, map[string]*normalizer.Table{split: table}, opts, message)
}

// UpdateDataset pushes src to a public repository, replacing split.
func (u *Uploader) UpdateDataset(ctx context.Context, src normalizer.Source, repoID, split, message string) (string, error) {
	if message == "" {
		message = "Update dataset with new data"
	}

	return u.PushData(ctx, src, PushOptions{
		RepoID:        repoID,
		Split:         split,
		CommitMessage: message,
		Private:       false,
	})
}

// PushSplits normalizes every source and pushes them in one commit.
func (u *Uploader) PushSplits(ctx context.Context, sources map[string]normalizer.Source, opts PushOptions) (string, error) {
	if len(sources) == 0 {
		return "", ErrNoSplits
	}

	tables := make(map[string]*normalizer.Table, len(sources))
	total := 0

	for split, src := range sources {
		table, err := u.PrepareDataset(src)
		if err != nil {
			u.logger.Error("failed to prepare split", "repo_id", opts.RepoID, "split", split, "error", err)
			return "", fmt.Errorf("split %s: %w", split, err)
		}

		tables[splitName(split)] = table
		total += table.Len()
	}

	message := opts.CommitMessage
	if message == "" {
		message = fmt.Sprintf("Upload multi-split dataset with %d total documents", total)
	}

	return u.push(ctx, tables, opts, message)
}

// DatasetInfo returns hub metadata for repoID.
func (u *Uploader) DatasetInfo(ctx context.Context, repoID string) (*RepoInfo, error) {
	info, err := u.client.RepoInfo(ctx, repoID)
	if err != nil {
		u.logger.Error("failed to get dataset info", "repo_id", repoID, "error", err)
		return nil, err
	}

	return info, nil
}

func (u *Uploader) push(ctx context.Context, tables map[string]*normalizer.Table, opts PushOptions, message string) (string, error) {
	log := u.logger.With("repo_id", opts.RepoID)

	if err := u.client.CreateRepo(ctx, opts.RepoID, opts.Private); err != nil {
		log.Error("failed to create dataset repository", "error", err)
		return "", err
	}

	commit := Commit{Summary: message}

	for split, table := range tables {
		content, err := normalizer.EncodeJSONL(table)
		if err != nil {
			log.Error("failed to encode split", "split", split, "error", err)
			return "", err
		}

		commit.Files = append(commit.Files, CommitFile{
			Path:    DataFilePath(split, opts.Shard),
			Content: content,
		})
	}

	card, err := DatasetCard(opts.RepoID, tables, opts.Shard == "")
	if err != nil {
		log.Error("failed to render dataset card", "error", err)
		return "", err
	}

	commit.Files = append(commit.Files, CommitFile{Path: "README.md", Content: []byte(card)})

	resp, err := u.client.Commit(ctx, opts.RepoID, commit)
	if err != nil {
		log.Error("failed to push dataset", "error", err)
		return "", err
	}

	datasetURL := u.DatasetURL(opts.RepoID)
	log.Info("dataset pushed", "url", datasetURL, "splits", len(tables), "commit", resp.CommitOID)

	return datasetURL, nil
}

// DataFilePath returns the repository path of a split's data file.
func DataFilePath(split, shard string) string {
	if shard == "" {
		return "data/" + split + "-00000-of-00001.jsonl"
	}

	return "data/" + split + "-" + shard + ".jsonl"
}

func splitName(split string) string {
	if s := strings.TrimSpace(split); s != "" {
		return s
	}

	return DefaultSplit
}
