package models

// ExecutionPath identifies which execution strategy handles a request.
type ExecutionPath string

const (
	// PathPredefined executes a matched flow template directly.
	PathPredefined ExecutionPath = "PREDEFINED"
	// PathSimple answers the request directly with no tool use.
	PathSimple ExecutionPath = "SIMPLE"
	// PathMedium executes a single collaborator call.
	PathMedium ExecutionPath = "MEDIUM"
	// PathComplex decomposes the request into a task plan.
	PathComplex ExecutionPath = "COMPLEX"
)

// Valid returns true if the path is a known value.
func (p ExecutionPath) Valid() bool {
	switch p {
	case PathPredefined, PathSimple, PathMedium, PathComplex:
		return true
	default:
		return false
	}
}

// RoutingDecision is the outcome of routing a single request. It is
// created by the router and never mutated afterward.
type RoutingDecision struct {
	// Path is the selected execution strategy.
	Path ExecutionPath `json:"path"`
	// Confidence is the router's confidence in the decision.
	Confidence float64 `json:"confidence"`
	// Reasoning is a human-readable trace of how the decision was made.
	Reasoning string `json:"reasoning"`
	// Score is the complexity score used for threshold routing, when computed.
	Score *ComplexityScore `json:"score,omitempty"`
	// MatchedFlow is the flow that matched the request. Non-nil iff
	// Path is PathPredefined.
	MatchedFlow *FlowDefinition `json:"matched_flow,omitempty"`
}
