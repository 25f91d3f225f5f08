package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Routing.SimpleBelow != 0.3 {
		t.Errorf("expected simple_below 0.3, got %f", cfg.Routing.SimpleBelow)
	}
	if cfg.Routing.ComplexAtOrAbove != 0.7 {
		t.Errorf("expected complex_at_or_above 0.7, got %f", cfg.Routing.ComplexAtOrAbove)
	}
	if cfg.Scoring.Weights.Tool != 0.4 {
		t.Errorf("expected tool weight 0.4, got %f", cfg.Scoring.Weights.Tool)
	}
	if cfg.Matching.SemanticThreshold != 0.85 {
		t.Errorf("expected semantic threshold 0.85, got %f", cfg.Matching.SemanticThreshold)
	}
	if cfg.Executor.MaxParallel != 4 {
		t.Errorf("expected max_parallel 4, got %d", cfg.Executor.MaxParallel)
	}
	if cfg.Executor.DefaultStepTimeout != 30*time.Second {
		t.Errorf("expected default step timeout 30s, got %v", cfg.Executor.DefaultStepTimeout)
	}
	if got := cfg.Scoring.DomainScores["banking"]; got != 0.8 {
		t.Errorf("expected banking domain score 0.8, got %f", got)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
routing:
  simple_below: 0.2
executor:
  max_parallel: 8
scoring:
  domain_scores:
    insurance: 0.9
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Routing.SimpleBelow != 0.2 {
		t.Errorf("expected override simple_below 0.2, got %f", cfg.Routing.SimpleBelow)
	}
	if cfg.Executor.MaxParallel != 8 {
		t.Errorf("expected override max_parallel 8, got %d", cfg.Executor.MaxParallel)
	}
	// Untouched defaults survive partial overrides.
	if cfg.Routing.ComplexAtOrAbove != 0.7 {
		t.Errorf("expected default complex_at_or_above 0.7, got %f", cfg.Routing.ComplexAtOrAbove)
	}
	if got := cfg.Scoring.DomainScores["insurance"]; got != 0.9 {
		t.Errorf("expected insurance domain score 0.9, got %f", got)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("SWITCHBOARD_TEST_KEY", "secret-value")

	got := expandEnv("${SWITCHBOARD_TEST_KEY}")
	if got != "secret-value" {
		t.Errorf("expected expanded value, got %q", got)
	}

	if got := expandEnv("plain"); got != "plain" {
		t.Errorf("expected passthrough, got %q", got)
	}
}
