package models

// ScoreWeights holds the relative weights applied to the four complexity
// sub-scores when computing the final score. Weights should sum to 1.0.
type ScoreWeights struct {
	Intent float64 `json:"intent" mapstructure:"intent"`
	Tool   float64 `json:"tool" mapstructure:"tool"`
	Domain float64 `json:"domain" mapstructure:"domain"`
	State  float64 `json:"state" mapstructure:"state"`
}

// DefaultScoreWeights returns the standard weighting used when no
// configuration overrides it.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Intent: 0.3, Tool: 0.4, Domain: 0.2, State: 0.1}
}

// ComplexityScore is the multi-dimensional complexity assessment of a
// request. All sub-scores are in [0,1]. Computed once per request and
// never mutated afterward.
type ComplexityScore struct {
	// IntentIndicator reflects lexical simplicity/complexity signals in the text.
	IntentIndicator float64 `json:"intent_indicator"`
	// ToolRequirement reflects how many collaborator invocations the intent implies.
	ToolRequirement float64 `json:"tool_requirement"`
	// DomainComplexity is the configured complexity tier of the request's domain.
	DomainComplexity float64 `json:"domain_complexity"`
	// StateDependency reflects how much the request leans on prior conversation state.
	StateDependency float64 `json:"state_dependency"`
	// Final is the weighted sum of the four sub-scores.
	Final float64 `json:"final"`
}

// Weighted computes the final score from the sub-scores using the given
// weights, clamped to [0,1].
func (s ComplexityScore) Weighted(w ScoreWeights) float64 {
	f := w.Intent*s.IntentIndicator + w.Tool*s.ToolRequirement +
		w.Domain*s.DomainComplexity + w.State*s.StateDependency
	return Clamp01(f)
}

// Clamp01 clamps v to the [0,1] interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
