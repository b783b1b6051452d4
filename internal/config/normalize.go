package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeUpstream(); err != nil {
		return err
	}
	if err := c.normalizeCredential(); err != nil {
		return err
	}
	c.normalizeCatalog()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.InputFile, err = expandPath(strings.TrimSpace(c.Paths.InputFile)); err != nil {
		return fmt.Errorf("paths.input_file: %w", err)
	}
	c.Paths.SnapshotPrefix = strings.TrimSpace(c.Paths.SnapshotPrefix)
	if c.Paths.SnapshotPrefix == "" {
		c.Paths.SnapshotPrefix = defaultSnapshotPrefix
	}
	return nil
}

func (c *Config) normalizeUpstream() error {
	c.Upstream.BaseURL = strings.TrimSpace(c.Upstream.BaseURL)
	if c.Upstream.BaseURL == "" {
		if value, ok := os.LookupEnv("STACKS_BASE_URL"); ok {
			c.Upstream.BaseURL = strings.TrimSpace(value)
		}
	}
	c.Upstream.ClientID = strings.TrimSpace(c.Upstream.ClientID)
	c.Upstream.ClientIDHeader = strings.TrimSpace(c.Upstream.ClientIDHeader)
	if c.Upstream.ClientIDHeader == "" {
		c.Upstream.ClientIDHeader = defaultClientIDHeader
	}
	c.Upstream.CredentialHeader = strings.TrimSpace(c.Upstream.CredentialHeader)
	if c.Upstream.CredentialHeader == "" {
		c.Upstream.CredentialHeader = defaultCredentialHeader
	}
	c.Upstream.UserAgent = strings.TrimSpace(c.Upstream.UserAgent)
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = defaultUserAgent
	}
	if c.Upstream.PageSize <= 0 {
		c.Upstream.PageSize = defaultPageSize
	}
	if c.Upstream.RequestTimeout <= 0 {
		c.Upstream.RequestTimeout = defaultRequestTimeout
	}
	if c.Upstream.MaxPages < 0 {
		c.Upstream.MaxPages = 0
	}
	var err error
	if c.Upstream.ListingQueryFile, err = expandPath(strings.TrimSpace(c.Upstream.ListingQueryFile)); err != nil {
		return fmt.Errorf("upstream.listing_query_file: %w", err)
	}
	if c.Upstream.EnrichmentQueryFile, err = expandPath(strings.TrimSpace(c.Upstream.EnrichmentQueryFile)); err != nil {
		return fmt.Errorf("upstream.enrichment_query_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeCredential() error {
	c.Credential.EnvVar = strings.TrimSpace(c.Credential.EnvVar)
	if c.Credential.EnvVar == "" {
		c.Credential.EnvVar = defaultCredentialEnvVar
	}
	var err error
	if c.Credential.File, err = expandPath(strings.TrimSpace(c.Credential.File)); err != nil {
		return fmt.Errorf("credential.file: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() {
	if len(c.Catalog.AllowedFormats) == 0 {
		c.Catalog.AllowedFormats = append([]string(nil), DefaultAllowedFormats...)
		return
	}
	formats := make([]string, 0, len(c.Catalog.AllowedFormats))
	seen := make(map[string]struct{}, len(c.Catalog.AllowedFormats))
	for _, format := range c.Catalog.AllowedFormats {
		trimmed := strings.TrimSpace(format)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		formats = append(formats, trimmed)
	}
	c.Catalog.AllowedFormats = formats
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
