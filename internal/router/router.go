// Package router selects the execution path for a classified request,
// combining the flow matcher and the complexity scorer.
package router

import (
	"context"
	"fmt"

	"github.com/switchboard-ai/switchboard/internal/config"
	"github.com/switchboard-ai/switchboard/pkg/models"
)

// FlowMatcher is the matching pipeline the router consults first.
type FlowMatcher interface {
	Match(ctx context.Context, intent models.Intent, text string) (*models.FlowDefinition, error)
}

// Router turns an intent and a complexity score into a routing
// decision. The decision is deterministic and side-effect free.
type Router struct {
	matcher FlowMatcher
	cfg     config.RoutingConfig
}

// New creates a router with the given matcher and thresholds.
func New(matcher FlowMatcher, cfg config.RoutingConfig) *Router {
	return &Router{matcher: matcher, cfg: cfg}
}

// Route decides the execution path for a request. A flow match takes
// absolute precedence over complexity-based routing; predefined flows
// are trusted fast paths. Matcher errors degrade to threshold routing
// rather than failing the request.
func (r *Router) Route(ctx context.Context, intent models.Intent, text string, score models.ComplexityScore) models.RoutingDecision {
	if r.matcher != nil {
		matched, err := r.matcher.Match(ctx, intent, text)
		if err == nil && matched != nil {
			return models.RoutingDecision{
				Path:        models.PathPredefined,
				Confidence:  r.cfg.FlowConfidence,
				Reasoning:   fmt.Sprintf("matched predefined flow %s for intent %s", matched.FlowID, intent.Key()),
				MatchedFlow: matched,
			}
		}
	}

	path := r.pathForScore(score.Final)
	return models.RoutingDecision{
		Path:       path,
		Confidence: r.cfg.ThresholdConfidence,
		Reasoning:  fmt.Sprintf("no flow matched; complexity score %.2f selects %s path", score.Final, path),
		Score:      &score,
	}
}

// pathForScore applies the configured thresholds to the final score.
func (r *Router) pathForScore(final float64) models.ExecutionPath {
	switch {
	case final < r.cfg.SimpleBelow:
		return models.PathSimple
	case final < r.cfg.ComplexAtOrAbove:
		return models.PathMedium
	default:
		return models.PathComplex
	}
}
