package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Helper to create a temp config file.
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// partialConfigYAML sets a few fields and relies on defaults for the rest.
const partialConfigYAML = `
source:
  requests_per_second: 0.5
  extractor: readability
ingest:
  document_types: ["KHK", "Teblig"]
  page_length: 50
  flush_threshold: 200
  upload: true
output:
  dir: "./data"
  pretty: true
hub:
  repo_id: "org/mevzuat"
archive:
  dsn: "sqlite://./data/archive.db"
logging:
  level: debug
`

func TestLoadConfig_FillsDefaults(t *testing.T) {
	cfg, err := LoadConfig(createTempConfigFile(t, partialConfigYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Source.RequestsPerSecond != 0.5 {
		t.Errorf("Expected requests_per_second 0.5, got %v", cfg.Source.RequestsPerSecond)
	}

	if cfg.Source.Extractor != ExtractorReadability {
		t.Errorf("Expected readability extractor, got %q", cfg.Source.Extractor)
	}

	if len(cfg.Ingest.DocumentTypes) != 2 || cfg.Ingest.DocumentTypes[1] != "Teblig" {
		t.Errorf("Unexpected document types: %v", cfg.Ingest.DocumentTypes)
	}

	if cfg.Ingest.PageLength != 50 || cfg.Ingest.FlushThreshold != 200 {
		t.Errorf("Unexpected ingest sizes: %d/%d", cfg.Ingest.PageLength, cfg.Ingest.FlushThreshold)
	}

	if !cfg.Output.Pretty || !cfg.Ingest.Upload {
		t.Error("Expected explicit booleans to survive defaults")
	}

	// Defaults
	if cfg.Source.BaseURL != "https://www.mevzuat.gov.tr" {
		t.Errorf("Expected default base URL, got %q", cfg.Source.BaseURL)
	}

	if cfg.Source.ListPath != "/Anasayfa/MevzuatDatatable" {
		t.Errorf("Expected default list path, got %q", cfg.Source.ListPath)
	}

	if cfg.Source.AuthMode != AuthHTTP {
		t.Errorf("Expected default auth mode, got %q", cfg.Source.AuthMode)
	}

	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BackoffMultiplier != 2.0 {
		t.Errorf("Expected default retry policy, got %+v", cfg.Retry)
	}

	if cfg.Hub.TokenEnv != "HF_TOKEN" || cfg.Hub.Split != "train" {
		t.Errorf("Expected default hub settings, got %+v", cfg.Hub)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := createTempConfigFile(t, "source: [unclosed")

	if _, err := LoadConfig(configPath); err == nil {
		t.Error("Expected error for invalid YAML, got nil")
	}
}

func TestLoadConfig_ValidationError(t *testing.T) {
	configPath := createTempConfigFile(t, "source:\n  auth_mode: carrier-pigeon\n")

	_, err := LoadConfig(configPath)
	if !errors.Is(err, ErrInvalidAuthMode) {
		t.Errorf("Expected ErrInvalidAuthMode, got %v", err)
	}
}

func TestLoadOrDefault_EmptyPath(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config must be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"missing base url", func(c *Config) { c.Source.BaseURL = "" }, ErrMissingBaseURL},
		{"unknown auth mode", func(c *Config) { c.Source.AuthMode = "oauth" }, ErrInvalidAuthMode},
		{"static without token", func(c *Config) { c.Source.AuthMode = AuthStatic }, ErrStaticTokenRequired},
		{"unknown extractor", func(c *Config) { c.Source.Extractor = "regex" }, ErrInvalidExtractor},
		{"negative rate", func(c *Config) { c.Source.RequestsPerSecond = -1 }, ErrInvalidRate},
		{"zero timeout", func(c *Config) { c.Source.TimeoutSec = 0 }, ErrInvalidSourceTimeout},
		{"no document types", func(c *Config) { c.Ingest.DocumentTypes = nil }, ErrNoDocumentTypes},
		{"negative start", func(c *Config) { c.Ingest.StartOffset = -1 }, ErrNegativeStartOffset},
		{"zero page length", func(c *Config) { c.Ingest.PageLength = 0 }, ErrInvalidPageLength},
		{"zero threshold", func(c *Config) { c.Ingest.FlushThreshold = 0 }, ErrInvalidFlushThreshold},
		{"negative max pages", func(c *Config) { c.Ingest.MaxPages = -1 }, ErrNegativeMaxPages},
		{"negative reauth", func(c *Config) { c.Ingest.MaxReauth = -1 }, ErrNegativeMaxReauth},
		{"upload without repo", func(c *Config) { c.Ingest.Upload = true }, ErrUploadRequiresRepo},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, ErrInvalidMaxAttempts},
		{"negative delay", func(c *Config) { c.Retry.InitialDelayMs = -1 }, ErrInvalidInitialDelay},
		{"shrinking backoff", func(c *Config) { c.Retry.BackoffMultiplier = 0.5 }, ErrInvalidBackoffMultiplier},
		{"missing output dir", func(c *Config) { c.Output.Dir = "" }, ErrMissingOutputDir},
		{"mysql archive", func(c *Config) { c.Archive.DSN = "mysql://root@localhost/db" }, ErrUnsupportedArchiveDSN},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, ErrInvalidLogLevel},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
		{"static with token", func(c *Config) { c.Source.AuthMode = AuthStatic; c.Source.StaticToken = "tok" }, nil},
		{"postgres archive", func(c *Config) { c.Archive.DSN = "postgres://u:p@localhost/db" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}

			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestArchiveDriver(t *testing.T) {
	tests := map[string]string{
		"postgres://u@h/db":   "pgx",
		"postgresql://u@h/db": "pgx",
		"sqlite://./a.db":     "sqlite",
		"./a.db":              "",
		"":                    "",
	}

	for dsn, want := range tests {
		if got := ArchiveDriver(dsn); got != want {
			t.Errorf("ArchiveDriver(%q) = %q, want %q", dsn, got, want)
		}
	}
}

// --- RetryPolicy Tests ---

func TestRetryPolicy_GetRetryDelay(t *testing.T) {
	rp := RetryPolicy{
		InitialDelayMs:    100,
		MaxDelayMs:        1000,
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 0},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1000 * time.Millisecond}, // Capped at max
		{10, 1000 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := rp.GetRetryDelay(tt.attempt); got != tt.expected {
			t.Errorf("GetRetryDelay(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestRetryPolicy_Resilience(t *testing.T) {
	rp := Default().Retry
	rp.Breaker = true

	rc := rp.Resilience()

	if rc.RetryMaxAttempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", rc.RetryMaxAttempts)
	}

	if rc.RetryInitialBackoff != 500*time.Millisecond || rc.RetryMaxBackoff != 30*time.Second {
		t.Errorf("Unexpected backoff bounds: %v..%v", rc.RetryInitialBackoff, rc.RetryMaxBackoff)
	}

	if !rc.BreakerEnabled || rc.BreakerOpenTimeout != 30*time.Second || rc.BreakerMinRequests != 10 {
		t.Errorf("Unexpected breaker settings: %+v", rc)
	}
}

// --- Config Helper Method Tests ---

func TestTimeouts(t *testing.T) {
	cfg := Default()

	if got := cfg.Source.GetTimeout(); got != 20*time.Second {
		t.Errorf("Source.GetTimeout() = %v", got)
	}

	if got := cfg.Source.GetAuthTimeout(); got != 10*time.Second {
		t.Errorf("Source.GetAuthTimeout() = %v", got)
	}

	if got := cfg.Hub.GetTimeout(); got != 120*time.Second {
		t.Errorf("Hub.GetTimeout() = %v", got)
	}
}

func TestHubConfig_Token(t *testing.T) {
	t.Setenv("MEVZUAT_TEST_HF", "hf_abc")

	hub := HubConfig{TokenEnv: "MEVZUAT_TEST_HF"}
	if got := hub.Token(); got != "hf_abc" {
		t.Errorf("Token() = %q", got)
	}
}

func TestConfig_GetOutputPath(t *testing.T) {
	cfg := &Config{Output: OutputConfig{Dir: "./data"}}

	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.FixedZone("TRT", 3*60*60))

	path := cfg.GetOutputPath("Kanun", at, 7)
	expected := filepath.Join("data", "Kanun", "Kanun_20250601T093000Z_0007.json")

	if path != expected {
		t.Errorf("GetOutputPath() = %v, want %v", path, expected)
	}
}

func TestConfig_String(t *testing.T) {
	cfg := Default()
	cfg.Hub.RepoID = "org/mevzuat"

	str := cfg.String()
	if !strings.Contains(str, "org/mevzuat") || !strings.Contains(str, "Kanun") {
		t.Errorf("Unexpected string representation: %s", str)
	}
}

func TestConfig_SaveConfig(t *testing.T) {
	cfg := Default()
	cfg.Ingest.DocumentTypes = []string{"Tuzuk"}
	cfg.Hub.RepoID = "org/mevzuat"

	savePath := filepath.Join(t.TempDir(), "saved_config.yaml")

	if err := cfg.SaveConfig(savePath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(savePath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if loaded.Ingest.DocumentTypes[0] != "Tuzuk" || loaded.Hub.RepoID != "org/mevzuat" {
		t.Errorf("Saved config did not round trip: %s", loaded)
	}
}
