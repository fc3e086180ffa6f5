// Package config provides configuration management for the scraper and uploader.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"mevzuat/internal/resilience"
)

// Configuration validation errors.
var (
	ErrMissingBaseURL           = errors.New("source.base_url is required")
	ErrInvalidAuthMode          = errors.New("source.auth_mode must be one of: http, browser, static")
	ErrStaticTokenRequired      = errors.New("source.static_token is required when auth_mode is static")
	ErrInvalidExtractor         = errors.New("source.extractor must be 'body' or 'readability'")
	ErrInvalidRate              = errors.New("source.requests_per_second must be non-negative")
	ErrInvalidSourceTimeout     = errors.New("source.timeout_sec must be at least 1")
	ErrNoDocumentTypes          = errors.New("ingest.document_types must list at least one type")
	ErrNegativeStartOffset      = errors.New("ingest.start_offset must be non-negative")
	ErrInvalidPageLength        = errors.New("ingest.page_length must be at least 1")
	ErrInvalidFlushThreshold    = errors.New("ingest.flush_threshold must be at least 1")
	ErrNegativeMaxPages         = errors.New("ingest.max_pages must be non-negative")
	ErrNegativeMaxReauth        = errors.New("ingest.max_reauth must be non-negative")
	ErrUploadRequiresRepo       = errors.New("hub.repo_id is required when ingest.upload is enabled")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrMissingOutputDir         = errors.New("output.dir is required")
	ErrUnsupportedArchiveDSN    = errors.New("archive.dsn must start with postgres://, postgresql:// or sqlite://")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be 'text' or 'json'")
)

// Auth modes for the source session.
const (
	AuthHTTP    = "http"
	AuthBrowser = "browser"
	AuthStatic  = "static"
)

// Text extractors for detail pages.
const (
	ExtractorBody        = "body"
	ExtractorReadability = "readability"
)

// Config represents the complete scraper configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Retry   RetryPolicy   `yaml:"retry"`
	Output  OutputConfig  `yaml:"output"`
	Hub     HubConfig     `yaml:"hub"`
	Archive ArchiveConfig `yaml:"archive"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// SourceConfig describes the legislation portal.
type SourceConfig struct {
	BaseURL           string  `yaml:"base_url"`
	LandingPath       string  `yaml:"landing_path"`
	ListPath          string  `yaml:"list_path"`
	DetailPath        string  `yaml:"detail_path"`
	DocumentPath      string  `yaml:"document_path"`
	AuthMode          string  `yaml:"auth_mode"`
	StaticToken       string  `yaml:"static_token"`
	UserAgent         string  `yaml:"user_agent"`
	SearchPhrase      string  `yaml:"search_phrase"`
	SearchField       string  `yaml:"search_field"`
	Extractor         string  `yaml:"extractor"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	AuthTimeoutSec    int     `yaml:"auth_timeout_sec"`
	MaxBodyKb         int     `yaml:"max_body_kb"`
	CloudflareBypass  bool    `yaml:"cloudflare_bypass"`
}

// IngestConfig drives the pagination loop.
type IngestConfig struct {
	DocumentTypes  []string `yaml:"document_types"`
	StartOffset    int      `yaml:"start_offset"`
	PageLength     int      `yaml:"page_length"`
	FlushThreshold int      `yaml:"flush_threshold"`
	MaxPages       int      `yaml:"max_pages"`
	MaxReauth      int      `yaml:"max_reauth"`
	Upload         bool     `yaml:"upload"`
}

// RetryPolicy defines retry behavior for transient source failures.
type RetryPolicy struct {
	MaxAttempts           int     `yaml:"max_attempts"`
	InitialDelayMs        int     `yaml:"initial_delay_ms"`
	MaxDelayMs            int     `yaml:"max_delay_ms"`
	BackoffMultiplier     float64 `yaml:"backoff_multiplier"`
	BreakerMinRequests    uint32  `yaml:"breaker_min_requests"`
	BreakerFailureRatio   float64 `yaml:"breaker_failure_ratio"`
	BreakerOpenTimeoutSec int     `yaml:"breaker_open_timeout_sec"`
	Breaker               bool    `yaml:"breaker"`
}

// OutputConfig defines where flushed batches land.
type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Pretty bool   `yaml:"pretty"`
}

// HubConfig describes the destination dataset repository.
type HubConfig struct {
	Endpoint      string `yaml:"endpoint"`
	RepoID        string `yaml:"repo_id"`
	Split         string `yaml:"split"`
	CommitMessage string `yaml:"commit_message"`
	TokenEnv      string `yaml:"token_env"`
	TimeoutSec    int    `yaml:"timeout_sec"`
	Private       bool   `yaml:"private"`
}

// ArchiveConfig enables the optional database mirror of flushed batches.
type ArchiveConfig struct {
	DSN string `yaml:"dsn"`
}

// MetricsConfig enables the prometheus listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
// Booleans default to false so that mergo never overrides an explicit false.
func Default() Config {
	return Config{
		Source: SourceConfig{
			BaseURL:           "https://www.mevzuat.gov.tr",
			LandingPath:       "/#kanunlar",
			ListPath:          "/Anasayfa/MevzuatDatatable",
			DetailPath:        "/anasayfa/MevzuatFihristDetayIframe",
			DocumentPath:      "/mevzuat",
			AuthMode:          AuthHTTP,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36",
			SearchPhrase:      "sa",
			SearchField:       "3",
			Extractor:         ExtractorBody,
			RequestsPerSecond: 2,
			TimeoutSec:        20,
			AuthTimeoutSec:    10,
			MaxBodyKb:         16 * 1024,
		},
		Ingest: IngestConfig{
			DocumentTypes:  []string{"Kanun"},
			PageLength:     100,
			FlushThreshold: 100,
			MaxReauth:      1,
		},
		Retry: RetryPolicy{
			MaxAttempts:           3,
			InitialDelayMs:        500,
			MaxDelayMs:            30000,
			BackoffMultiplier:     2.0,
			BreakerMinRequests:    10,
			BreakerFailureRatio:   0.5,
			BreakerOpenTimeoutSec: 30,
		},
		Output: OutputConfig{
			Dir: "./data",
		},
		Hub: HubConfig{
			Endpoint:   "https://huggingface.co",
			Split:      "train",
			TokenEnv:   "HF_TOKEN",
			TimeoutSec: 120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file, fills unset fields from
// Default and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads path when it is set, otherwise returns Default.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return &cfg, nil
	}

	return LoadConfig(path)
}

// ApplyDefaults fills every zero-valued field from Default.
func (c *Config) ApplyDefaults() error {
	if err := mergo.Merge(c, Default()); err != nil {
		return fmt.Errorf("failed to merge defaults: %w", err)
	}

	return nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return ErrMissingBaseURL
	}

	switch c.Source.AuthMode {
	case AuthHTTP, AuthBrowser:
	case AuthStatic:
		if c.Source.StaticToken == "" {
			return ErrStaticTokenRequired
		}
	default:
		return ErrInvalidAuthMode
	}

	if c.Source.Extractor != ExtractorBody && c.Source.Extractor != ExtractorReadability {
		return ErrInvalidExtractor
	}

	if c.Source.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}

	if c.Source.TimeoutSec < 1 {
		return ErrInvalidSourceTimeout
	}

	if len(c.Ingest.DocumentTypes) == 0 {
		return ErrNoDocumentTypes
	}

	if c.Ingest.StartOffset < 0 {
		return ErrNegativeStartOffset
	}

	if c.Ingest.PageLength < 1 {
		return ErrInvalidPageLength
	}

	if c.Ingest.FlushThreshold < 1 {
		return ErrInvalidFlushThreshold
	}

	if c.Ingest.MaxPages < 0 {
		return ErrNegativeMaxPages
	}

	if c.Ingest.MaxReauth < 0 {
		return ErrNegativeMaxReauth
	}

	if c.Ingest.Upload && c.Hub.RepoID == "" {
		return ErrUploadRequiresRepo
	}

	// Validate retry policy
	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if c.Output.Dir == "" {
		return ErrMissingOutputDir
	}

	if c.Archive.DSN != "" && ArchiveDriver(c.Archive.DSN) == "" {
		return ErrUnsupportedArchiveDSN
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

// ArchiveDriver returns the database/sql driver name for a DSN, or "" when
// the scheme is not supported.
func ArchiveDriver(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx"
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite"
	}

	return ""
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// Resilience converts the policy into executor settings.
func (rp *RetryPolicy) Resilience() resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        rp.MaxAttempts,
		RetryInitialBackoff:     time.Duration(rp.InitialDelayMs) * time.Millisecond,
		RetryMaxBackoff:         time.Duration(rp.MaxDelayMs) * time.Millisecond,
		RetryMultiplier:         rp.BackoffMultiplier,
		BreakerEnabled:          rp.Breaker,
		BreakerMinRequests:      rp.BreakerMinRequests,
		BreakerFailureRatio:     rp.BreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(rp.BreakerOpenTimeoutSec) * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	}
}

// GetTimeout returns the source request timeout.
func (s *SourceConfig) GetTimeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// GetAuthTimeout returns how long the authenticator may wait for the token.
func (s *SourceConfig) GetAuthTimeout() time.Duration {
	return time.Duration(s.AuthTimeoutSec) * time.Second
}

// GetTimeout returns the hub request timeout.
func (h *HubConfig) GetTimeout() time.Duration {
	return time.Duration(h.TimeoutSec) * time.Second
}

// Token reads the hub token from the configured environment variable.
func (h *HubConfig) Token() string {
	return os.Getenv(h.TokenEnv)
}

// GetOutputPath follows structure: {dir}/{type}/{type}_{timestamp}_{seq}.json.
func (c *Config) GetOutputPath(documentType string, at time.Time, seq int) string {
	name := fmt.Sprintf("%s_%s_%04d.json", documentType, at.UTC().Format("20060102T150405Z"), seq)
	return filepath.Join(c.Output.Dir, documentType, name)
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Types: %v, PageLength: %d, FlushThreshold: %d, Output: %s, Repo: %s}",
		c.Ingest.DocumentTypes,
		c.Ingest.PageLength,
		c.Ingest.FlushThreshold,
		c.Output.Dir,
		c.Hub.RepoID,
	)
}
