// Package config handles configuration loading and management for
// switchboard. It supports XDG config paths, project-level overrides,
// and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/viper"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

// Config holds all configuration for switchboard.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Flows     FlowsConfig     `mapstructure:"flows"`
	State     StateConfig     `mapstructure:"state"`
	LogPath   string          `mapstructure:"log_path"`
}

// AnthropicConfig holds Anthropic API settings for the LLM-backed
// collaborator adapters.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. Supports ${VAR} expansion.
	APIKey string `mapstructure:"api_key"`
	// Model is the model used by the classifier and planner adapters.
	Model string `mapstructure:"model"`
	// UseAWSBedrock routes requests through AWS Bedrock instead of the
	// direct API.
	UseAWSBedrock bool `mapstructure:"use_aws_bedrock"`
	// AWSRegion is the Bedrock region.
	AWSRegion string `mapstructure:"aws_region"`
	// AWSProfile is the optional AWS profile name.
	AWSProfile string `mapstructure:"aws_profile"`
}

// RoutingConfig holds the execution-path thresholds.
type RoutingConfig struct {
	// SimpleBelow routes scores below this value to the SIMPLE path.
	SimpleBelow float64 `mapstructure:"simple_below"`
	// ComplexAtOrAbove routes scores at or above this value to COMPLEX.
	// Scores between the two thresholds take the MEDIUM path.
	ComplexAtOrAbove float64 `mapstructure:"complex_at_or_above"`
	// ThresholdConfidence is the confidence reported for threshold routing.
	ThresholdConfidence float64 `mapstructure:"threshold_confidence"`
	// FlowConfidence is the confidence reported for predefined flow matches.
	FlowConfidence float64 `mapstructure:"flow_confidence"`
}

// ScoringConfig holds complexity scorer settings.
type ScoringConfig struct {
	// Weights are the sub-score weights for the final score.
	Weights models.ScoreWeights `mapstructure:"weights"`
	// DomainScores maps domain names to complexity tiers in [0,1].
	DomainScores map[string]float64 `mapstructure:"domain_scores"`
	// DefaultDomainScore is used for domains absent from the table.
	DefaultDomainScore float64 `mapstructure:"default_domain_score"`
}

// MatchingConfig holds flow matcher settings.
type MatchingConfig struct {
	// SemanticThreshold is the minimum cosine similarity for a semantic
	// match.
	SemanticThreshold float64 `mapstructure:"semantic_threshold"`
	// EmbeddingCacheSize bounds the request-embedding LRU cache.
	EmbeddingCacheSize int `mapstructure:"embedding_cache_size"`
}

// ExecutorConfig holds task plan executor settings.
type ExecutorConfig struct {
	// MaxParallel bounds concurrent step execution within one plan.
	MaxParallel int `mapstructure:"max_parallel"`
	// DefaultStepTimeout bounds a single step attempt when the step
	// declares no timeout.
	DefaultStepTimeout time.Duration `mapstructure:"default_step_timeout"`
	// DefaultMaxRetries applies to steps that declare no retry policy.
	DefaultMaxRetries int `mapstructure:"default_max_retries"`
	// PlanTimeout bounds end-to-end plan execution. Zero derives a
	// deadline from the sum of step timeouts.
	PlanTimeout time.Duration `mapstructure:"plan_timeout"`
}

// FlowsConfig holds flow registry settings.
type FlowsConfig struct {
	// Dir is the directory of flow definition YAML files.
	Dir string `mapstructure:"dir"`
	// Watch enables hot reload of the flows directory.
	Watch bool `mapstructure:"watch"`
}

// StateConfig holds persistence settings.
type StateConfig struct {
	// DBPath is the SQLite database path for flow metrics and plan
	// audit records. Empty disables persistence.
	DBPath string `mapstructure:"db_path"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (SWITCHBOARD_*, ANTHROPIC_API_KEY)
// 2. Project config (.switchboard.yaml in current directory or parent)
// 3. User config (~/.config/switchboard/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("SWITCHBOARD")
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Default returns the built-in default configuration without touching
// the filesystem.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")

	v.SetDefault("routing.simple_below", 0.3)
	v.SetDefault("routing.complex_at_or_above", 0.7)
	v.SetDefault("routing.threshold_confidence", 0.8)
	v.SetDefault("routing.flow_confidence", 0.95)

	v.SetDefault("scoring.weights.intent", 0.3)
	v.SetDefault("scoring.weights.tool", 0.4)
	v.SetDefault("scoring.weights.domain", 0.2)
	v.SetDefault("scoring.weights.state", 0.1)
	v.SetDefault("scoring.default_domain_score", 0.5)
	v.SetDefault("scoring.domain_scores", map[string]float64{
		"general":    0.2,
		"smalltalk":  0.2,
		"support":    0.5,
		"commerce":   0.5,
		"banking":    0.8,
		"healthcare": 0.8,
		"legal":      0.8,
	})

	v.SetDefault("matching.semantic_threshold", 0.85)
	v.SetDefault("matching.embedding_cache_size", 512)

	v.SetDefault("executor.max_parallel", 4)
	v.SetDefault("executor.default_step_timeout", 30*time.Second)
	v.SetDefault("executor.default_max_retries", 2)
	v.SetDefault("executor.plan_timeout", time.Duration(0))

	v.SetDefault("flows.dir", "")
	v.SetDefault("flows.watch", false)

	v.SetDefault("state.db_path", "")
	v.SetDefault("log_path", "")
}

// getUserConfigDir returns the XDG config directory for switchboard.
func getUserConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "switchboard")
}

// findProjectConfig walks up from the current directory looking for a
// .switchboard.yaml file.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".switchboard.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv expands ${VAR} references in a config value.
func expandEnv(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		return os.Getenv(name)
	})
}
