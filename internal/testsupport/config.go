package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"stacks/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Pacing and backoff delays are zero so tests never wait.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Upstream.BaseURL = "http://127.0.0.1:1/graphql"
	cfgVal.Upstream.ClientID = "test-client"
	cfgVal.Upstream.PageSize = 2
	cfgVal.Credential.EnvVar = "STACKS_TEST_CREDENTIAL_UNSET"
	cfgVal.Retry.BaseDelaySeconds = 0
	cfgVal.Pacing.PageDelaySeconds = 0
	cfgVal.Pacing.EnrichmentDelaySeconds = 0
	cfgVal.History.Enabled = true

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBaseURL points the upstream client at url.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upstream.BaseURL = url
	}
}

// WithCredential writes token to a credential file and configures it.
func WithCredential(token string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "credential.txt")
		if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
			b.t.Fatalf("write credential: %v", err)
		}
		b.cfg.Credential.File = path
	}
}

// WithInputFile sets the prior dataset location.
func WithInputFile(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.InputFile = path
	}
}

// WithPageSize overrides the listing page size.
func WithPageSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upstream.PageSize = size
	}
}

// WithoutHistory disables the run ledger.
func WithoutHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
