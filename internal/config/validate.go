package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateUpstream(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validatePacing(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateUpstream() error {
	if c.Upstream.BaseURL != "" {
		parsed, err := url.Parse(c.Upstream.BaseURL)
		if err != nil {
			return fmt.Errorf("upstream.base_url: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("upstream.base_url must use http or https, got %q", c.Upstream.BaseURL)
		}
	}
	if c.Upstream.PageSize > maxPageSize {
		return fmt.Errorf("upstream.page_size must be at most %d", maxPageSize)
	}
	if strings.EqualFold(c.Upstream.ClientIDHeader, c.Upstream.CredentialHeader) {
		return errors.New("upstream.client_id_header and upstream.credential_header must differ")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts <= 0 {
		return errors.New("retry.max_attempts must be positive")
	}
	if c.Retry.BaseDelaySeconds < 0 {
		return errors.New("retry.base_delay_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validatePacing() error {
	if c.Pacing.PageDelaySeconds < 0 {
		return errors.New("pacing.page_delay_seconds must be >= 0")
	}
	if c.Pacing.EnrichmentDelaySeconds < 0 {
		return errors.New("pacing.enrichment_delay_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if len(c.Catalog.AllowedFormats) == 0 {
		return errors.New("catalog.allowed_formats must include at least one format")
	}
	return nil
}
