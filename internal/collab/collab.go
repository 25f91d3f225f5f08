// Package collab defines the contracts switchboard consumes from its
// external collaborators: intent classification, memory retrieval,
// collaborator selection, step invocation, and task planning. The core
// depends only on these interfaces; concrete adapters live elsewhere.
package collab

import (
	"context"
	"errors"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

// ErrUnavailable indicates a collaborator could not be reached. It is
// treated as transient and retried by the plan executor.
var ErrUnavailable = errors.New("collaborator unavailable")

// Classifier extracts a structured intent from raw request text.
type Classifier interface {
	Classify(ctx context.Context, text string, mem models.MemorySnapshot) (models.Intent, error)
}

// Memory retrieves a read-only snapshot of prior conversation state.
type Memory interface {
	Retrieve(ctx context.Context, conversationID string) (models.MemorySnapshot, error)
}

// Selector chooses the collaborator that executes a step.
type Selector interface {
	Select(ctx context.Context, step *models.TaskStep) (models.CollaboratorSelection, error)
}

// Invoker executes a step's selected collaborator with resolved
// parameters. Implementations must honor ctx cancellation and be safe
// to retry.
type Invoker interface {
	Invoke(ctx context.Context, step *models.TaskStep, params map[string]any) (*models.StepResult, error)
}

// SubTask is one unit of the externally supplied breakdown of a complex
// request, consumed by the decomposer.
type SubTask struct {
	// ID uniquely identifies the subtask within the breakdown.
	ID string `json:"id"`
	// Description is a short summary of the work.
	Description string `json:"description"`
	// Type is the kind of step the subtask becomes.
	Type models.StepType `json:"type"`
	// DependsOn lists subtask IDs that must complete first.
	DependsOn []string `json:"depends_on,omitempty"`
	// Condition references a prior subtask's result when execution is
	// gated on its outcome, e.g. "verify.approved".
	Condition string `json:"condition,omitempty"`
	// Bindings declares parameter resolution for the resulting step.
	Bindings map[string]models.ParameterBinding `json:"bindings,omitempty"`
	// Critical marks the subtask as required for overall success.
	Critical bool `json:"critical,omitempty"`
	// RunOnFailure marks a compensation subtask.
	RunOnFailure bool `json:"run_on_failure,omitempty"`
}

// Planner produces the subtask breakdown for a complex request.
type Planner interface {
	Plan(ctx context.Context, req models.Request, intent models.Intent, mem models.MemorySnapshot) ([]SubTask, error)
}
