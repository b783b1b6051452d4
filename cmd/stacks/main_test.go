package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"stacks/internal/config"
	"stacks/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	fake       *testsupport.FakeUpstream
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	fake := testsupport.NewFakeUpstream(t,
		testsupport.Book{ASIN: "B001", AcquiredAt: 300, Title: "First", Authors: []string{"Ann"}, Description: "One"},
		testsupport.Book{ASIN: "B002", AcquiredAt: 200, Title: "Second", Authors: []string{"Bob"}},
		testsupport.Book{ASIN: "B003", AcquiredAt: 100, Title: "Third", Authors: []string{"Cy"}, Description: "Three"},
	)
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithBaseURL(fake.URL())}, opts...)...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, fake: fake, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLISyncShowAndHistory(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithCredential("token"))

	out, _, err := runCLI(t, []string{"sync", "--log-level", "error"}, env.configPath)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	for _, want := range []string{"completed", "New entries", "Missing synopses", "first_try", "Enrichment", "Log: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("sync output missing %q:\n%s", want, out)
		}
	}

	out, _, err = runCLI(t, []string{"show", "--missing"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "Total entries") || !strings.Contains(out, "B002") {
		t.Fatalf("unexpected show output:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "completed") {
		t.Fatalf("unexpected history output:\n%s", out)
	}

	runs, err := testsupport.MustOpenHistory(t, env.cfg).List(t.Context(), 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("List = %+v, %v", runs, err)
	}
	out, _, err = runCLI(t, []string{"history", "show", runs[0].ID[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	if !strings.Contains(out, runs[0].ID) || !strings.Contains(out, "Collection complete") {
		t.Fatalf("unexpected history show output:\n%s", out)
	}
}

func TestCLISyncDryRunWritesNoSnapshot(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithCredential("token"))

	out, _, err := runCLI(t, []string{"sync", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("sync --dry-run: %v", err)
	}
	if !strings.Contains(out, "dry run, not written") {
		t.Fatalf("unexpected dry-run output:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"show"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "No manifest found") {
		t.Fatalf("expected no manifest after dry run:\n%s", out)
	}
}

func TestCLISyncStopsOnPreflightFailure(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"sync"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "preflight failed") {
		t.Fatalf("expected preflight failure, got %v", err)
	}
	if !strings.Contains(out, "Credential") {
		t.Fatalf("expected the failing check to be printed:\n%s", out)
	}
	if env.fake.Calls("LibraryPage") != 0 {
		t.Fatal("sync must not contact upstream after a failed preflight")
	}
}

func TestCLIPreflight(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithCredential("token"))

	out, _, err := runCLI(t, []string{"preflight"}, env.configPath)
	if err != nil {
		t.Fatalf("preflight: %v\n%s", err, out)
	}
	if !strings.Contains(out, "All checks passed") || !strings.Contains(out, "Output directory") {
		t.Fatalf("unexpected preflight output:\n%s", out)
	}
}

func TestCLIConfigInitAndValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "stacks", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	for _, want := range []string{"Configuration valid", "Credential source", "env:STACKS_CREDENTIAL", "Run history"} {
		if !strings.Contains(out, want) {
			t.Fatalf("validate output missing %q: %q", want, out)
		}
	}
}

func TestCLIConfigValidateReportsCredentialFile(t *testing.T) {
	env := setupCLITestEnv(t)
	credentialPath := filepath.Join(testsupport.BaseDir(env.cfg), "credential")
	env.cfg.Credential.File = credentialPath
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "file:"+credentialPath) || !strings.Contains(out, env.cfg.Paths.OutputDir) {
		t.Fatalf("expected file credential source and output dir, got %q", out)
	}
}

func TestStageLabel(t *testing.T) {
	tests := map[string]string{
		"collection":    "Collection",
		"retry_missing": "Retry Missing",
		"":              "",
	}
	for input, want := range tests {
		if got := stageLabel(input); got != want {
			t.Errorf("stageLabel(%q) = %q, want %q", input, got, want)
		}
	}
}
