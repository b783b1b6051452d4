package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations.
type Paths struct {
	OutputDir      string `toml:"output_dir"`
	InputFile      string `toml:"input_file"`
	StateDir       string `toml:"state_dir"`
	LogDir         string `toml:"log_dir"`
	SnapshotPrefix string `toml:"snapshot_prefix"`
}

// Upstream contains connection settings for the content provider API.
type Upstream struct {
	BaseURL string `toml:"base_url"`
	// ClientID is sent with every request; empty means a generated identifier persisted in StateDir.
	ClientID            string `toml:"client_id"`
	ClientIDHeader      string `toml:"client_id_header"`
	CredentialHeader    string `toml:"credential_header"`
	UserAgent           string `toml:"user_agent"`
	PageSize            int    `toml:"page_size"`
	MaxPages            int    `toml:"max_pages"`
	RequestTimeout      int    `toml:"request_timeout"`
	ListingQueryFile    string `toml:"listing_query_file"`
	EnrichmentQueryFile string `toml:"enrichment_query_file"`
}

// Credential describes where the session credential is read from.
type Credential struct {
	// EnvVar names the environment variable holding the credential.
	EnvVar string `toml:"env_var"`
	// File, when set, is re-read on every refresh and takes precedence over EnvVar.
	File string `toml:"file"`
}

// Retry contains the per-call retry policy.
type Retry struct {
	MaxAttempts      int  `toml:"max_attempts"`
	BaseDelaySeconds int  `toml:"base_delay_seconds"`
	FreshCredential  bool `toml:"fresh_credential"`
}

// Pacing contains the courtesy delays between sequential upstream calls.
type Pacing struct {
	PageDelaySeconds       float64 `toml:"page_delay_seconds"`
	EnrichmentDelaySeconds float64 `toml:"enrichment_delay_seconds"`
}

// Catalog contains catalog filtering rules.
type Catalog struct {
	AllowedFormats []string `toml:"allowed_formats"`
}

// History contains configuration for the run ledger.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for stacks.
//
// Configuration sections by subsystem:
//   - Paths: snapshot output, optional input dataset, state and logs
//   - Upstream: provider endpoint, headers, page size, query documents
//   - Credential: where the session credential is read and re-read from
//   - Retry: attempts, backoff and the fresh-credential final attempt
//   - Pacing: courtesy delays between page and enrichment calls
//   - Catalog: format allow-list applied while collecting
//   - History: SQLite run ledger
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	Upstream   Upstream   `toml:"upstream"`
	Credential Credential `toml:"credential"`
	Retry      Retry      `toml:"retry"`
	Pacing     Pacing     `toml:"pacing"`
	Catalog    Catalog    `toml:"catalog"`
	History    History    `toml:"history"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/stacks/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/stacks/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("stacks.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output, state, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RequireUpstream reports whether the settings needed to reach the provider are present.
// Commands that only read local state skip this check.
func (c *Config) RequireUpstream() error {
	if strings.TrimSpace(c.Upstream.BaseURL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/stacks/config.toml"
		}
		return fmt.Errorf("upstream.base_url is required. Set STACKS_BASE_URL env var or edit %s (create with 'stacks config init')", defaultPath)
	}
	return nil
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Upstream.RequestTimeout) * time.Second
}

// RetryBaseDelay returns the first backoff step between attempts.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelaySeconds) * time.Second
}

// PageDelay returns the courtesy delay between listing pages.
func (c *Config) PageDelay() time.Duration {
	return secondsToDuration(c.Pacing.PageDelaySeconds)
}

// EnrichmentDelay returns the courtesy delay between enrichment calls.
func (c *Config) EnrichmentDelay() time.Duration {
	return secondsToDuration(c.Pacing.EnrichmentDelaySeconds)
}

// HistoryPath returns the location of the run ledger database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the location of the single-instance run lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "stacks.lock")
}

// ClientStatePath returns the location of the persisted client identity.
func (c *Config) ClientStatePath() string {
	return filepath.Join(c.Paths.StateDir, "client.json")
}

func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
