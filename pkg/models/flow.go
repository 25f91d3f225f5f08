package models

import "time"

// FlowMetrics tracks execution statistics for a flow. Metrics are
// updated only by the flow registry after a plan using the flow
// completes, never by concurrent step execution.
type FlowMetrics struct {
	// UsageCount is the number of times the flow has been executed.
	UsageCount int64 `json:"usage_count"`
	// SuccessCount is the number of executions that completed successfully.
	SuccessCount int64 `json:"success_count"`
	// AverageLatency is the running mean of end-to-end execution time.
	AverageLatency time.Duration `json:"average_latency"`
}

// SuccessRate returns the fraction of executions that succeeded, or 0
// if the flow has never run.
func (m FlowMetrics) SuccessRate() float64 {
	if m.UsageCount == 0 {
		return 0
	}
	return float64(m.SuccessCount) / float64(m.UsageCount)
}

// TaskTemplate is the static step graph a flow instantiates per request.
type TaskTemplate struct {
	// Steps lists the step templates in declaration order.
	Steps []StepTemplate `json:"steps" yaml:"steps"`
}

// StepTemplate declares one step of a flow's task template.
type StepTemplate struct {
	// StepID is the unique step identifier within the template.
	StepID string `json:"step_id" yaml:"step_id"`
	// Type is the kind of work the step performs.
	Type StepType `json:"type" yaml:"type"`
	// Selection names the collaborator that executes the step.
	Selection CollaboratorSelection `json:"selection" yaml:"selection"`
	// Mode is the scheduling mode for the step.
	Mode ExecutionMode `json:"mode" yaml:"mode"`
	// DependsOn lists step IDs that must reach a terminal state first.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on"`
	// Bindings declares how the step's parameters are resolved.
	Bindings map[string]ParameterBinding `json:"bindings,omitempty" yaml:"bindings"`
	// Condition references a prior step's result for CONDITIONAL steps,
	// e.g. "verify.approved".
	Condition string `json:"condition,omitempty" yaml:"condition"`
	// Timeout bounds a single execution attempt. Zero means the
	// configured default.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout"`
	// MaxRetries is the number of retries after the first failed attempt.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries"`
	// Critical marks the step as required for overall plan success.
	Critical bool `json:"critical,omitempty" yaml:"critical"`
	// RunOnFailure marks a compensation step that still runs when its
	// dependencies fail.
	RunOnFailure bool `json:"run_on_failure,omitempty" yaml:"run_on_failure"`
}

// FlowDefinition is a precompiled, parameterized template matched
// directly from intent, bypassing dynamic decomposition.
type FlowDefinition struct {
	// FlowID uniquely identifies the flow.
	FlowID string `json:"flow_id" yaml:"flow_id"`
	// Description is a short human-readable summary.
	Description string `json:"description,omitempty" yaml:"description"`
	// IntentKey is the exact-match key ("TYPE:domain") for strategy 1.
	IntentKey string `json:"intent_key,omitempty" yaml:"intent_key"`
	// Pattern is the regex source matched against raw request text for
	// strategy 2. Compiled once at registration.
	Pattern string `json:"pattern,omitempty" yaml:"pattern"`
	// Embedding is the precomputed vector for semantic matching
	// (strategy 3).
	Embedding []float32 `json:"embedding,omitempty" yaml:"embedding"`
	// Template is the static DAG instantiated per request.
	Template TaskTemplate `json:"template" yaml:"template"`
	// Parameters lists the parameter names the flow expects.
	Parameters []string `json:"parameters,omitempty" yaml:"parameters"`
	// SLATarget is the expected end-to-end latency for the flow.
	SLATarget Duration `json:"sla_target,omitempty" yaml:"sla_target"`
	// Metrics holds execution statistics, updated by the registry.
	Metrics FlowMetrics `json:"metrics" yaml:"-"`
}
