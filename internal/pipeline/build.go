package pipeline

import (
	"fmt"
	"log/slog"

	"stacks/internal/collector"
	"stacks/internal/config"
	"stacks/internal/credential"
	"stacks/internal/enrichment"
	"stacks/internal/history"
	"stacks/internal/retry"
	"stacks/internal/snapshot"
	"stacks/internal/upstream"
)

// NewFromConfig wires the production collaborators described by cfg. The
// caller must Close the runner to release the history database.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: config required")
	}
	if err := cfg.RequireUpstream(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	clientID, err := credential.NewClientStore(cfg.ClientStatePath()).Resolve(cfg.Upstream.ClientID)
	if err != nil {
		return nil, fmt.Errorf("resolve client id: %w", err)
	}
	client, err := upstream.NewFromConfig(cfg, clientID)
	if err != nil {
		return nil, err
	}

	provider := credential.NewFromConfig(cfg)
	retrier := retry.New(provider, retry.PolicyFromConfig(cfg), retry.WithLogger(logger))

	deps := Dependencies{
		Provider:  provider,
		Source:    snapshot.NewFromConfig(cfg, logger),
		Collector: collector.NewFromConfig(cfg, client, retrier, logger),
		Enricher:  enrichment.NewFromConfig(cfg, client, retrier, logger),
		LockPath:  cfg.LockPath(),
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		deps.Recorder = store
	}

	runner := New(deps, WithLogger(logger))
	if store != nil {
		runner.closers = append(runner.closers, store.Close)
	}
	return runner, nil
}
