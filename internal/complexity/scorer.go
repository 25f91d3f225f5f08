// Package complexity scores incoming requests on four weighted
// dimensions to drive execution-path routing.
package complexity

import (
	"strings"
	"unicode"

	"github.com/switchboard-ai/switchboard/internal/config"
	"github.com/switchboard-ai/switchboard/pkg/models"
)

// Lexical indicator tables. Simple indicators pull the intent score
// down, complex indicators push it up.
var (
	questionWords = map[string]bool{
		"what": true, "who": true, "when": true, "where": true,
		"which": true, "why": true, "how": true,
	}
	explanationVerbs = map[string]bool{
		"explain": true, "describe": true, "define": true, "summarize": true,
	}
	greetings = map[string]bool{
		"hi": true, "hello": true, "hey": true, "thanks": true,
		"thank": true, "goodbye": true, "bye": true,
	}
	connectives = map[string]bool{
		"then": true, "after": true, "afterwards": true, "next": true,
		"finally": true, "before": true,
	}
	conditionals = map[string]bool{
		"if": true, "unless": true, "otherwise": true, "whenever": true,
	}
	transactionalVerbs = map[string]bool{
		"transfer": true, "send": true, "pay": true, "buy": true,
		"book": true, "cancel": true, "schedule": true, "create": true,
		"update": true, "delete": true, "order": true, "move": true,
		"notify": true,
	}
	pronounReferences = map[string]bool{
		"it": true, "that": true, "them": true, "those": true,
		"this": true, "these": true, "there": true,
	}
)

const (
	simpleIndicatorDelta  = 0.3
	complexIndicatorDelta = 0.2
	intentBaseline        = 0.5
)

// Scorer computes complexity scores for requests. Aside from the
// configured domain table it is a pure function of its inputs.
type Scorer struct {
	weights       models.ScoreWeights
	domainScores  map[string]float64
	defaultDomain float64
}

// NewScorer creates a scorer from configuration.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	weights := cfg.Weights
	if weights == (models.ScoreWeights{}) {
		weights = models.DefaultScoreWeights()
	}
	return &Scorer{
		weights:       weights,
		domainScores:  cfg.DomainScores,
		defaultDomain: cfg.DefaultDomainScore,
	}
}

// Score computes the four sub-scores and the weighted final score for a
// request. An empty intent (unclassifiable request) yields a zero
// score, which routes to the SIMPLE path.
func (s *Scorer) Score(text string, intent models.Intent, mem models.MemorySnapshot) models.ComplexityScore {
	if intent.Type == "" {
		return models.ComplexityScore{}
	}

	tokens := tokenize(text)

	score := models.ComplexityScore{
		IntentIndicator:  s.intentIndicatorScore(tokens, intent),
		ToolRequirement:  s.toolRequirementScore(tokens, intent),
		DomainComplexity: s.domainScore(intent.Domain),
		StateDependency:  s.stateDependencyScore(tokens, mem),
	}
	score.Final = score.Weighted(s.weights)
	return score
}

// intentIndicatorScore starts from a neutral baseline, subtracts for
// each simple lexical indicator, and adds for each complex one.
func (s *Scorer) intentIndicatorScore(tokens []string, intent models.Intent) float64 {
	score := intentBaseline

	for _, tok := range tokens {
		switch {
		case questionWords[tok], explanationVerbs[tok], greetings[tok]:
			score -= simpleIndicatorDelta
		case connectives[tok], conditionals[tok], transactionalVerbs[tok]:
			score += complexIndicatorDelta
		}
	}

	if len(intent.Entities) >= 2 {
		score += complexIndicatorDelta
	}

	return models.Clamp01(score)
}

// toolRequirementScore maps the number and shape of implied
// collaborator invocations to a fixed tier.
func (s *Scorer) toolRequirementScore(tokens []string, intent models.Intent) float64 {
	calls := impliedInvocations(tokens, intent)
	switch {
	case calls == 0:
		return 0.0
	case calls == 1:
		return 0.3
	case hasAny(tokens, conditionals):
		// Multiple calls where later ones depend on earlier outcomes.
		return 0.9
	default:
		return 0.6
	}
}

// impliedInvocations estimates how many distinct tool or agent calls
// the request implies.
func impliedInvocations(tokens []string, intent models.Intent) int {
	calls := 0
	seen := make(map[string]bool)
	for _, tok := range tokens {
		if transactionalVerbs[tok] && !seen[tok] {
			seen[tok] = true
			calls++
		}
	}

	if calls == 0 {
		switch intent.Type {
		case models.IntentTransactional:
			calls = 1
		case models.IntentAnalytical:
			// Analysis implies at least one retrieval call.
			calls = 1
		}
	}

	// Sequential connectives imply separate invocations even when the
	// verbs repeat.
	if calls == 1 && hasAny(tokens, connectives) {
		calls = 2
	}

	return calls
}

// domainScore looks up the configured complexity tier for a domain.
func (s *Scorer) domainScore(domain string) float64 {
	if domain == "" {
		return s.defaultDomain
	}
	if v, ok := s.domainScores[strings.ToLower(domain)]; ok {
		return v
	}
	return s.defaultDomain
}

// stateDependencyScore reflects how much the request leans on prior
// conversation state: self-contained (0.1), pronoun/ellipsis references
// (0.5), or multi-turn slot filling (0.9).
func (s *Scorer) stateDependencyScore(tokens []string, mem models.MemorySnapshot) float64 {
	references := hasAny(tokens, pronounReferences)

	if references && mem.Turns > 1 {
		return 0.9
	}
	if references {
		return 0.5
	}
	return 0.1
}

func hasAny(tokens []string, set map[string]bool) bool {
	for _, tok := range tokens {
		if set[tok] {
			return true
		}
	}
	return false
}

// tokenize lowercases the text and splits on anything that is not a
// letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
