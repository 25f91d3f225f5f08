package models

import "time"

// PlanStatus represents the overall state of a task plan.
type PlanStatus string

const (
	// PlanStatusPending indicates the plan has not started.
	PlanStatusPending PlanStatus = "PENDING"
	// PlanStatusRunning indicates the plan is executing.
	PlanStatusRunning PlanStatus = "RUNNING"
	// PlanStatusCompleted indicates every step completed successfully.
	PlanStatusCompleted PlanStatus = "COMPLETED"
	// PlanStatusFailed indicates the plan failed as a whole.
	PlanStatusFailed PlanStatus = "FAILED"
	// PlanStatusPartiallyFailed indicates some steps failed or were
	// skipped while at least one completed.
	PlanStatusPartiallyFailed PlanStatus = "PARTIALLY_FAILED"
)

// Valid returns true if the status is a known value.
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusPending, PlanStatusRunning, PlanStatusCompleted,
		PlanStatusFailed, PlanStatusPartiallyFailed:
		return true
	default:
		return false
	}
}

// StepStatus represents the state of a single step.
type StepStatus string

const (
	// StepStatusPending indicates the step has not started.
	StepStatusPending StepStatus = "PENDING"
	// StepStatusRunning indicates the step is executing.
	StepStatusRunning StepStatus = "RUNNING"
	// StepStatusCompleted indicates the step finished successfully.
	StepStatusCompleted StepStatus = "COMPLETED"
	// StepStatusFailed indicates the step failed after exhausting retries.
	StepStatusFailed StepStatus = "FAILED"
	// StepStatusSkipped indicates the step never ran because a
	// dependency failed or a guard evaluated false.
	StepStatusSkipped StepStatus = "SKIPPED"
)

// Terminal returns true if the status is a terminal state.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// StepType is the kind of work a step performs.
type StepType string

const (
	// StepTypeToolCall invokes an external tool.
	StepTypeToolCall StepType = "TOOL_CALL"
	// StepTypeAgentCall delegates to a sub-agent.
	StepTypeAgentCall StepType = "AGENT_CALL"
	// StepTypeDecision evaluates a branching decision.
	StepTypeDecision StepType = "DECISION"
	// StepTypeDataTransform reshapes data between steps.
	StepTypeDataTransform StepType = "DATA_TRANSFORM"
	// StepTypeValidation checks inputs or outputs against constraints.
	StepTypeValidation StepType = "VALIDATION"
)

// Valid returns true if the step type is a known value.
func (t StepType) Valid() bool {
	switch t {
	case StepTypeToolCall, StepTypeAgentCall, StepTypeDecision,
		StepTypeDataTransform, StepTypeValidation:
		return true
	default:
		return false
	}
}

// ExecutionMode controls how a ready step is scheduled.
type ExecutionMode string

const (
	// ModeSequential runs the step alone, in declaration order.
	ModeSequential ExecutionMode = "SEQUENTIAL"
	// ModeParallel allows the step to run concurrently with other
	// parallel-ready steps.
	ModeParallel ExecutionMode = "PARALLEL"
	// ModeConditional gates the step on a prior step's result.
	ModeConditional ExecutionMode = "CONDITIONAL"
)

// Valid returns true if the mode is a known value.
func (m ExecutionMode) Valid() bool {
	switch m {
	case ModeSequential, ModeParallel, ModeConditional:
		return true
	default:
		return false
	}
}

// CollaboratorKind distinguishes the kinds of executable units a step
// can delegate to.
type CollaboratorKind string

const (
	// CollaboratorTool is a registered tool.
	CollaboratorTool CollaboratorKind = "tool"
	// CollaboratorAgent is a sub-agent.
	CollaboratorAgent CollaboratorKind = "agent"
	// CollaboratorMCP is an external MCP server endpoint.
	CollaboratorMCP CollaboratorKind = "mcp"
)

// CollaboratorSelection names the collaborator bound to a step.
type CollaboratorSelection struct {
	// Kind is the collaborator category.
	Kind CollaboratorKind `json:"kind" yaml:"kind"`
	// Name identifies the tool, agent, or server.
	Name string `json:"name" yaml:"name"`
	// Endpoint is the network endpoint for MCP collaborators.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint"`
}

// ParameterSource identifies where a parameter value is resolved from.
type ParameterSource string

const (
	// SourceContext reads from the agent context.
	SourceContext ParameterSource = "CONTEXT"
	// SourcePreviousStep dereferences a prior step's result.
	SourcePreviousStep ParameterSource = "PREVIOUS_STEP"
	// SourceUserInput extracts from the original request payload.
	SourceUserInput ParameterSource = "USER_INPUT"
	// SourceMemory queries the memory snapshot.
	SourceMemory ParameterSource = "MEMORY"
	// SourceConstant returns the declared default value directly.
	SourceConstant ParameterSource = "CONSTANT"
	// SourceComputed applies a named transform over resolved bindings.
	SourceComputed ParameterSource = "COMPUTED"
)

// Valid returns true if the source is a known value.
func (s ParameterSource) Valid() bool {
	switch s {
	case SourceContext, SourcePreviousStep, SourceUserInput,
		SourceMemory, SourceConstant, SourceComputed:
		return true
	default:
		return false
	}
}

// ParameterBinding declares how one step parameter is resolved at
// execution time.
type ParameterBinding struct {
	// Source is where the value comes from.
	Source ParameterSource `json:"source" yaml:"source"`
	// Reference locates the value within the source, e.g.
	// "verify.result.account_number" for PREVIOUS_STEP.
	Reference string `json:"reference,omitempty" yaml:"reference"`
	// Default is used when the reference resolves to nothing.
	Default any `json:"default,omitempty" yaml:"default"`
	// Required causes resolution failure to fail the step when no
	// default is declared.
	Required bool `json:"required,omitempty" yaml:"required"`
}

// StepResult is the recorded outcome of a completed step.
type StepResult struct {
	// Output holds the structured result, addressable by dotted path
	// from downstream bindings.
	Output map[string]any `json:"output,omitempty"`
	// Text is an optional free-form result for direct responses.
	Text string `json:"text,omitempty"`
}

// StepAttempt records one execution attempt of a step.
type StepAttempt struct {
	// Attempt is the 1-indexed attempt number.
	Attempt int `json:"attempt"`
	// StartedAt is when the attempt began.
	StartedAt time.Time `json:"started_at"`
	// Duration is how long the attempt took.
	Duration time.Duration `json:"duration"`
	// Error is the failure message, empty on success.
	Error string `json:"error,omitempty"`
}

// MaxAttemptHistory bounds the per-step execution history.
const MaxAttemptHistory = 10

// TaskStep is one node of a task plan's DAG.
type TaskStep struct {
	// StepID uniquely identifies the step within its plan.
	StepID string `json:"step_id"`
	// Description is a short human-readable summary of the work.
	Description string `json:"description,omitempty"`
	// Type is the kind of work the step performs.
	Type StepType `json:"type"`
	// Selection names the collaborator that executes the step.
	Selection CollaboratorSelection `json:"selection"`
	// Bindings declares how the step's parameters are resolved.
	Bindings map[string]ParameterBinding `json:"bindings,omitempty"`
	// Dependencies lists step IDs this step is blocked by.
	Dependencies []string `json:"dependencies,omitempty"`
	// Dependents lists step IDs blocked by this step. Maintained by the
	// plan arena as the reverse of Dependencies.
	Dependents []string `json:"dependents,omitempty"`
	// Mode is the scheduling mode.
	Mode ExecutionMode `json:"mode"`
	// Condition references a prior step's result for CONDITIONAL steps.
	Condition string `json:"condition,omitempty"`
	// Status is the current state of the step.
	Status StepStatus `json:"status"`
	// Result is set once the step completes.
	Result *StepResult `json:"result,omitempty"`
	// History records execution attempts, bounded to MaxAttemptHistory.
	History []StepAttempt `json:"history,omitempty"`
	// Timeout bounds a single execution attempt.
	Timeout time.Duration `json:"timeout,omitempty"`
	// MaxRetries is the number of retries after the first failed
	// attempt. Zero means the configured default; negative disables
	// retries.
	MaxRetries int `json:"max_retries,omitempty"`
	// Critical marks the step as required for overall plan success.
	Critical bool `json:"critical,omitempty"`
	// RunOnFailure marks a compensation step that runs even when its
	// dependencies fail or are skipped.
	RunOnFailure bool `json:"run_on_failure,omitempty"`
	// Error is the final failure message if the step failed.
	Error string `json:"error,omitempty"`
	// StartedAt is when the step first started running.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the step reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RecordAttempt appends an attempt to the step's history, keeping at
// most MaxAttemptHistory entries.
func (s *TaskStep) RecordAttempt(a StepAttempt) {
	s.History = append(s.History, a)
	if len(s.History) > MaxAttemptHistory {
		s.History = s.History[len(s.History)-MaxAttemptHistory:]
	}
}

// TaskPlan is a DAG instance for one request. A plan is owned
// exclusively by one executor run and never shared across requests.
type TaskPlan struct {
	// ID uniquely identifies the plan.
	ID string `json:"id"`
	// RequestID links the plan back to the originating request.
	RequestID string `json:"request_id,omitempty"`
	// FlowID is set when the plan was instantiated from a flow template.
	FlowID string `json:"flow_id,omitempty"`
	// Status is the overall plan state.
	Status PlanStatus `json:"status"`
	// Steps holds the plan's steps in declaration order.
	Steps []*TaskStep `json:"steps"`
	// CreatedAt is when the plan was constructed.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the plan reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Step returns the step with the given ID, or nil if not present.
func (p *TaskPlan) Step(id string) *TaskStep {
	for _, s := range p.Steps {
		if s.StepID == id {
			return s
		}
	}
	return nil
}

// StepError describes the failure of a single step.
type StepError struct {
	// StepID identifies the failed step.
	StepID string `json:"step_id"`
	// Message is the failure description.
	Message string `json:"message"`
	// Attempts is how many execution attempts were made.
	Attempts int `json:"attempts"`
}

// StepTiming records when a step ran, for response metadata.
type StepTiming struct {
	// StepID identifies the step.
	StepID string `json:"step_id"`
	// Status is the step's terminal status.
	Status StepStatus `json:"status"`
	// StartedAt is when the step started, zero if it never ran.
	StartedAt time.Time `json:"started_at,omitempty"`
	// Duration is how long the step ran.
	Duration time.Duration `json:"duration,omitempty"`
}

// TaskPlanResult aggregates the outcome of executing a task plan.
type TaskPlanResult struct {
	// PlanID identifies the executed plan.
	PlanID string `json:"plan_id"`
	// Status is the overall outcome.
	Status PlanStatus `json:"status"`
	// Results maps step ID to the step's result for completed steps.
	Results map[string]*StepResult `json:"results,omitempty"`
	// StepErrors lists per-step failures.
	StepErrors []StepError `json:"step_errors,omitempty"`
	// StructuralError is set when the plan was rejected before any step
	// ran (cycle or dangling dependency). Distinct from step failures.
	StructuralError string `json:"structural_error,omitempty"`
	// Reasoning explains the terminal state in human-readable form.
	Reasoning string `json:"reasoning"`
	// Timings records per-step execution timing.
	Timings []StepTiming `json:"timings,omitempty"`
	// Duration is the end-to-end execution time.
	Duration time.Duration `json:"duration"`
}

// ResponseMetadata accompanies every response back to the caller.
type ResponseMetadata struct {
	// RequestID identifies the request.
	RequestID string `json:"request_id"`
	// ExecutionPath is the routing path the request took.
	ExecutionPath ExecutionPath `json:"execution_path"`
	// FlowID is set when a predefined flow handled the request.
	FlowID string `json:"flow_id,omitempty"`
	// Timings records per-step execution timing for plan-backed paths.
	Timings []StepTiming `json:"timings,omitempty"`
	// Duration is the end-to-end handling time.
	Duration time.Duration `json:"duration"`
}
