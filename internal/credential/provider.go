package credential

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"stacks/internal/config"
)

// ErrMissing is returned when no credential can be read from the configured source.
var ErrMissing = errors.New("credential not available")

// Token is an opaque session credential sent with every upstream request.
type Token string

// Empty reports whether the token carries no value.
func (t Token) Empty() bool {
	return strings.TrimSpace(string(t)) == ""
}

// Fingerprint returns a short digest safe to log in place of the token.
func (t Token) Fingerprint() string {
	if t.Empty() {
		return ""
	}
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:4])
}

// String hides the token value from fmt verbs and structured logs.
func (t Token) String() string {
	if t.Empty() {
		return "<empty>"
	}
	return "<redacted:" + t.Fingerprint() + ">"
}

// Provider supplies the held credential and re-reads it on demand.
type Provider interface {
	Current(ctx context.Context) (Token, error)
	Refresh(ctx context.Context) (Token, error)
}

// LookupFunc resolves an environment variable.
type LookupFunc func(string) (string, bool)

// EnvProvider reads the credential from an environment variable. Refresh reads
// the variable again, which picks up values exported by a wrapper process.
type EnvProvider struct {
	name   string
	lookup LookupFunc
}

// NewEnvProvider constructs an EnvProvider for the named variable.
func NewEnvProvider(name string, lookup LookupFunc) *EnvProvider {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &EnvProvider{name: name, lookup: lookup}
}

// Current returns the variable value or ErrMissing.
func (p *EnvProvider) Current(ctx context.Context) (Token, error) {
	return p.read(ctx)
}

// Refresh re-reads the variable.
func (p *EnvProvider) Refresh(ctx context.Context) (Token, error) {
	return p.read(ctx)
}

func (p *EnvProvider) read(ctx context.Context) (Token, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	value, ok := p.lookup(p.name)
	token := Token(strings.TrimSpace(value))
	if !ok || token.Empty() {
		return "", fmt.Errorf("%w: environment variable %s is not set", ErrMissing, p.name)
	}
	return token, nil
}

// FileProvider reads the credential from a file that an external helper keeps current.
type FileProvider struct {
	path string
}

// NewFileProvider constructs a FileProvider for path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Current reads the file.
func (p *FileProvider) Current(ctx context.Context) (Token, error) {
	return p.read(ctx)
}

// Refresh reads the file again.
func (p *FileProvider) Refresh(ctx context.Context) (Token, error) {
	return p.read(ctx)
}

func (p *FileProvider) read(ctx context.Context) (Token, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: credential file %s does not exist", ErrMissing, p.path)
		}
		return "", fmt.Errorf("read credential file: %w", err)
	}
	token := Token(strings.TrimSpace(string(data)))
	if token.Empty() {
		return "", fmt.Errorf("%w: credential file %s is empty", ErrMissing, p.path)
	}
	return token, nil
}

// NewFromConfig returns the provider described by cfg. A configured file takes
// precedence over the environment variable.
func NewFromConfig(cfg *config.Config) Provider {
	if cfg == nil {
		return NewEnvProvider("STACKS_CREDENTIAL", nil)
	}
	if cfg.Credential.File != "" {
		return NewFileProvider(cfg.Credential.File)
	}
	return NewEnvProvider(cfg.Credential.EnvVar, nil)
}

// Describe returns a human-readable name for the provider's source.
func Describe(p Provider) string {
	switch v := p.(type) {
	case *EnvProvider:
		return "env:" + v.name
	case *FileProvider:
		return "file:" + v.path
	default:
		return fmt.Sprintf("%T", p)
	}
}
