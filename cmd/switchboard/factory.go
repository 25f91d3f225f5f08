package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/switchboard-ai/switchboard/internal/api"
	"github.com/switchboard-ai/switchboard/internal/collab"
	"github.com/switchboard-ai/switchboard/internal/config"
	"github.com/switchboard-ai/switchboard/internal/flow"
	"github.com/switchboard-ai/switchboard/internal/orchestrator"
	"github.com/switchboard-ai/switchboard/internal/state"
	"github.com/switchboard-ai/switchboard/pkg/models"
)

// app bundles the wired components behind the CLI commands.
type app struct {
	cfg    *config.Config
	engine *orchestrator.Engine
	flows  *flow.Registry
	memory *collab.ConversationStore
	store  *state.DB
	logger *orchestrator.DebugLogger
}

// buildApp loads configuration and assembles the engine with its
// Anthropic-backed collaborators. The returned cleanup function closes
// the log file and the database.
func buildApp() (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := orchestrator.NewDebugLogger(cfg.LogPath)
	if err != nil {
		return nil, nil, err
	}

	var store *state.DB
	if cfg.State.DBPath != "" {
		store, err = state.Open(cfg.State.DBPath)
		if err != nil {
			logger.Close()
			return nil, nil, err
		}
		if err := store.Migrate(); err != nil {
			store.Close()
			logger.Close()
			return nil, nil, err
		}
	}

	flows := flow.NewRegistry()
	if store != nil {
		flows.SetMetricsSink(store)
	}
	if cfg.Flows.Dir != "" {
		if n, err := flows.LoadDir(cfg.Flows.Dir); err != nil {
			logger.Log("[cli] loading flows from %s failed: %v", cfg.Flows.Dir, err)
		} else {
			logger.Log("[cli] loaded %d flows from %s", n, cfg.Flows.Dir)
		}
	}

	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		if store != nil {
			store.Close()
		}
		logger.Close()
		return nil, nil, err
	}

	invokers := collab.NewInvokerRegistry()
	agent := api.NewAgentInvoker(client)
	invokers.Register(models.StepTypeAgentCall, agent)
	invokers.SetFallback(agent)

	matcher := flow.NewMatcher(flows, flow.NewHashingEmbedder(0),
		cfg.Matching.SemanticThreshold, cfg.Matching.EmbeddingCacheSize)

	memory := collab.NewConversationStore()

	deps := orchestrator.Deps{
		Classifier: api.NewIntentClassifier(client),
		Memory:     memory,
		Selector:   collab.RuleSelector{},
		Invokers:   invokers,
		Responder:  api.NewResponder(client),
		Planner:    api.NewTaskPlanner(client),
		Flows:      flows,
		Matcher:    matcher,
		Logger:     logger,
	}
	if store != nil {
		deps.Auditor = store
	}

	engine, err := orchestrator.NewEngine(cfg, deps)
	if err != nil {
		if store != nil {
			store.Close()
		}
		logger.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if store != nil {
			store.Close()
		}
		logger.Close()
	}
	return &app{cfg: cfg, engine: engine, flows: flows, memory: memory, store: store, logger: logger}, cleanup, nil
}
