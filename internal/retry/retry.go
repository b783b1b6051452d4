package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stacks/internal/config"
	"stacks/internal/credential"
	"stacks/internal/logging"
	"stacks/internal/pacing"
	"stacks/internal/runstats"
	"stacks/internal/services"
	"stacks/internal/upstream"
)

// ErrExhausted is returned when every attempt, including the fresh-credential
// attempt, failed.
var ErrExhausted = services.ErrExhausted

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 5 * time.Second
)

// Policy bounds the attempts made for one logical call.
type Policy struct {
	MaxAttempts int
	// BaseDelay is the wait after the first failure; each later wait doubles it.
	BaseDelay time.Duration
	// FreshCredential adds one final attempt with a re-read credential.
	FreshCredential bool
}

// DefaultPolicy returns three attempts at 5s and 10s spacing plus a fresh-credential attempt after 20s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: defaultMaxAttempts, BaseDelay: defaultBaseDelay, FreshCredential: true}
}

// PolicyFromConfig maps the [retry] section onto a Policy.
func PolicyFromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return DefaultPolicy()
	}
	return Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		BaseDelay:       cfg.RetryBaseDelay(),
		FreshCredential: cfg.Retry.FreshCredential,
	}
}

// Session is the credential state threaded through every call of a run.
// Call returns the updated Session; callers must keep the returned value.
type Session struct {
	Token     credential.Token
	Refreshes int
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Client applies Policy to upstream calls.
type Client struct {
	policy   Policy
	provider credential.Provider
	logger   *slog.Logger
	sleep    Sleeper
}

// Option customizes the client.
type Option func(*Client)

// WithSleeper overrides how backoff waits are performed (useful for tests).
func WithSleeper(sleeper Sleeper) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleep = sleeper
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "retry")
	}
}

// New constructs a Client. provider is consulted only for the fresh-credential attempt.
func New(provider credential.Provider, policy Policy, opts ...Option) *Client {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay < 0 {
		policy.BaseDelay = 0
	}
	client := &Client{
		policy:   policy,
		provider: provider,
		logger:   logging.NewNop(),
		sleep:    pacing.Sleep,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Policy returns the effective policy.
func (c *Client) Policy() Policy {
	return c.policy
}

// Result describes how a call resolved.
type Result[T any] struct {
	// Outcome is the usable outcome on success or the last failed outcome on exhaustion.
	Outcome   upstream.Outcome[T]
	Attempts  int
	Bucket    string
	Refreshed bool
}

// Call runs call under the client's policy. A usable outcome (including a
// protocol error that still carried data) ends the loop immediately. Context
// cancellation is returned as-is without further attempts.
func Call[T any](ctx context.Context, c *Client, session Session, call func(context.Context, credential.Token) upstream.Outcome[T]) (Result[T], Session, error) {
	logger := logging.WithContext(ctx, c.logger)
	freshAttempt := c.policy.FreshCredential && c.provider != nil
	var result Result[T]

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, session, err
		}
		outcome := call(ctx, session.Token)
		result.Attempts = attempt
		result.Outcome = outcome
		if err := ctx.Err(); err != nil {
			return result, session, err
		}
		if outcome.Usable() {
			result.Bucket = runstats.BucketFor(attempt)
			return result, session, nil
		}

		delay := c.backoff(attempt)
		last := attempt == c.policy.MaxAttempts
		if last && !freshAttempt {
			break
		}
		logger.Warn("upstream call failed; retrying",
			logging.String("operation", outcome.Operation),
			logging.Int("attempt", attempt),
			logging.String("outcome", outcome.Kind.String()),
			logging.Int("status", outcome.StatusCode),
			logging.Duration("delay", delay),
			logging.Error(outcome.Err()),
			logging.String(logging.FieldEventType, "upstream_retry"),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return result, session, err
		}
	}

	if freshAttempt {
		fresh, err := c.provider.Refresh(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, session, ctxErr
			}
			logging.WarnWithContext(logger, "credential refresh failed; keeping current credential", "credential_refresh_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "renew the credential source before the next run"),
			)
		} else {
			changed := fresh != session.Token
			session.Token = fresh
			session.Refreshes++
			result.Refreshed = true
			logger.Info("credential refreshed for final attempt",
				logging.Bool("credential_changed", changed),
				logging.String(logging.FieldEventType, "credential_refreshed"),
			)
		}

		attempt := c.policy.MaxAttempts + 1
		outcome := call(ctx, session.Token)
		result.Attempts = attempt
		result.Outcome = outcome
		if err := ctx.Err(); err != nil {
			return result, session, err
		}
		if outcome.Usable() {
			result.Bucket = runstats.BucketFor(attempt)
			return result, session, nil
		}
	}

	result.Bucket = runstats.BucketFailed
	stage, _ := services.StageFromContext(ctx)
	message := fmt.Sprintf("failed after %d attempts (last outcome %s)", result.Attempts, result.Outcome.Kind)
	return result, session, services.Wrap(ErrExhausted, stage, result.Outcome.Operation, message, result.Outcome.Err())
}

// backoff returns the wait after the given failed attempt: base, 2*base, 4*base, ...
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.policy.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// IsExhausted reports whether err came from a call that used every attempt.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}
