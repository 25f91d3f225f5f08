package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/switchboard-ai/switchboard/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show configuration",
	Long: `Display the effective configuration after merging defaults, the
user config, project overrides, and environment variables.

Without arguments, displays all configuration values.
With one argument (key), displays the value for that key.

Configuration is stored at ~/.config/switchboard/config.yaml
Project-specific overrides can be placed in .switchboard.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		if len(args) == 0 {
			displayAllConfig(cfg)
			return
		}
		value, err := getConfigValue(cfg, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(value)
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	// Mask API key if set
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.use_aws_bedrock: %t\n", cfg.Anthropic.UseAWSBedrock)
	fmt.Printf("routing.simple_below: %.2f\n", cfg.Routing.SimpleBelow)
	fmt.Printf("routing.complex_at_or_above: %.2f\n", cfg.Routing.ComplexAtOrAbove)
	fmt.Printf("routing.threshold_confidence: %.2f\n", cfg.Routing.ThresholdConfidence)
	fmt.Printf("routing.flow_confidence: %.2f\n", cfg.Routing.FlowConfidence)
	fmt.Printf("matching.semantic_threshold: %.2f\n", cfg.Matching.SemanticThreshold)
	fmt.Printf("matching.embedding_cache_size: %d\n", cfg.Matching.EmbeddingCacheSize)
	fmt.Printf("executor.max_parallel: %d\n", cfg.Executor.MaxParallel)
	fmt.Printf("executor.default_step_timeout: %s\n", cfg.Executor.DefaultStepTimeout)
	fmt.Printf("executor.default_max_retries: %d\n", cfg.Executor.DefaultMaxRetries)
	fmt.Printf("executor.plan_timeout: %s\n", cfg.Executor.PlanTimeout)
	fmt.Printf("flows.dir: %s\n", cfg.Flows.Dir)
	fmt.Printf("flows.watch: %t\n", cfg.Flows.Watch)
	fmt.Printf("state.db_path: %s\n", cfg.State.DBPath)
	fmt.Printf("log_path: %s\n", cfg.LogPath)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_aws_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseAWSBedrock), nil
	case "routing.simple_below":
		return strconv.FormatFloat(cfg.Routing.SimpleBelow, 'f', 2, 64), nil
	case "routing.complex_at_or_above":
		return strconv.FormatFloat(cfg.Routing.ComplexAtOrAbove, 'f', 2, 64), nil
	case "routing.threshold_confidence":
		return strconv.FormatFloat(cfg.Routing.ThresholdConfidence, 'f', 2, 64), nil
	case "routing.flow_confidence":
		return strconv.FormatFloat(cfg.Routing.FlowConfidence, 'f', 2, 64), nil
	case "matching.semantic_threshold":
		return strconv.FormatFloat(cfg.Matching.SemanticThreshold, 'f', 2, 64), nil
	case "matching.embedding_cache_size":
		return strconv.Itoa(cfg.Matching.EmbeddingCacheSize), nil
	case "executor.max_parallel":
		return strconv.Itoa(cfg.Executor.MaxParallel), nil
	case "executor.default_step_timeout":
		return cfg.Executor.DefaultStepTimeout.String(), nil
	case "executor.default_max_retries":
		return strconv.Itoa(cfg.Executor.DefaultMaxRetries), nil
	case "executor.plan_timeout":
		return cfg.Executor.PlanTimeout.String(), nil
	case "flows.dir":
		return cfg.Flows.Dir, nil
	case "flows.watch":
		return strconv.FormatBool(cfg.Flows.Watch), nil
	case "state.db_path":
		return cfg.State.DBPath, nil
	case "log_path":
		return cfg.LogPath, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}
