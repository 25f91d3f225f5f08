package flow

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

// Matcher matches a request against the flow registry using three
// strategies in increasing cost order: exact intent key, compiled
// regex, then embedding similarity. All strategies are read-only
// against the registry. No match is an empty result, not an error.
type Matcher struct {
	registry  *Registry
	embedder  Embedder
	threshold float64
	cache     *lru.Cache[string, []float32]
}

// NewMatcher creates a matcher over the given registry. The embedder
// may be nil, which disables the semantic strategy.
func NewMatcher(registry *Registry, embedder Embedder, threshold float64, cacheSize int) *Matcher {
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &Matcher{
		registry:  registry,
		embedder:  embedder,
		threshold: threshold,
		cache:     cache,
	}
}

// Match tries the three strategies in order and stops at the first hit.
func (m *Matcher) Match(ctx context.Context, intent models.Intent, text string) (*models.FlowDefinition, error) {
	if f := m.registry.FindByIntent(intent); f != nil {
		return f, nil
	}

	if f := m.matchPattern(text); f != nil {
		return f, nil
	}

	return m.matchSemantic(ctx, text)
}

// matchPattern evaluates flow regex patterns against the raw request
// text in decreasing usage-count order, so popular flows short-circuit
// sooner.
func (m *Matcher) matchPattern(text string) *models.FlowDefinition {
	for _, e := range m.registry.entriesByUsage() {
		if e.pattern == nil {
			continue
		}
		if e.pattern.MatchString(text) {
			return e.flow
		}
	}
	return nil
}

// matchSemantic embeds the request text and returns the
// highest-similarity flow whose similarity clears the threshold.
// Ties resolve by usage count, already encoded in iteration order.
func (m *Matcher) matchSemantic(ctx context.Context, text string) (*models.FlowDefinition, error) {
	if m.embedder == nil {
		return nil, nil
	}

	vec, err := m.embedText(ctx, text)
	if err != nil {
		return nil, err
	}

	var best *models.FlowDefinition
	bestSim := m.threshold
	for _, e := range m.registry.entriesByUsage() {
		if len(e.flow.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(vec, e.flow.Embedding)
		if sim > bestSim || (best == nil && sim == bestSim) {
			best = e.flow
			bestSim = sim
		}
	}
	return best, nil
}

// embedText embeds request text through the LRU cache.
func (m *Matcher) embedText(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := m.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	m.cache.Add(text, vec)
	return vec, nil
}
