package config

const (
	defaultOutputDir              = "~/.local/share/stacks/snapshots"
	defaultStateDir               = "~/.local/share/stacks/state"
	defaultLogDir                 = "~/.local/share/stacks/logs"
	defaultSnapshotPrefix         = "library"
	defaultClientIDHeader         = "X-Client-Id"
	defaultCredentialHeader       = "X-CSRF-Token"
	defaultUserAgent              = "stacks/dev"
	defaultPageSize               = 50
	defaultRequestTimeout         = 30
	defaultCredentialEnvVar       = "STACKS_CREDENTIAL"
	defaultRetryMaxAttempts       = 3
	defaultRetryBaseDelaySeconds  = 5
	defaultPageDelaySeconds       = 2
	defaultEnrichmentDelaySeconds = 3
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
	maxPageSize                   = 200
)

// DefaultAllowedFormats lists the binding classifiers treated as catalog entries.
var DefaultAllowedFormats = []string{
	"Kindle Edition",
	"Kindle eBook",
	"eBook",
	"Audible Audiobook",
	"Comics",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:      defaultOutputDir,
			StateDir:       defaultStateDir,
			LogDir:         defaultLogDir,
			SnapshotPrefix: defaultSnapshotPrefix,
		},
		Upstream: Upstream{
			ClientIDHeader:   defaultClientIDHeader,
			CredentialHeader: defaultCredentialHeader,
			UserAgent:        defaultUserAgent,
			PageSize:         defaultPageSize,
			RequestTimeout:   defaultRequestTimeout,
		},
		Credential: Credential{
			EnvVar: defaultCredentialEnvVar,
		},
		Retry: Retry{
			MaxAttempts:      defaultRetryMaxAttempts,
			BaseDelaySeconds: defaultRetryBaseDelaySeconds,
			FreshCredential:  true,
		},
		Pacing: Pacing{
			PageDelaySeconds:       defaultPageDelaySeconds,
			EnrichmentDelaySeconds: defaultEnrichmentDelaySeconds,
		},
		Catalog: Catalog{
			AllowedFormats: append([]string(nil), DefaultAllowedFormats...),
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
