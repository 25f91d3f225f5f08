package plan

import "github.com/switchboard-ai/switchboard/pkg/models"

// ExecutionContext accumulates the state parameter resolution draws
// from: the original request, the classified intent, the memory
// snapshot, and the results of completed steps.
//
// Only the scheduler goroutine writes to the context, immediately after
// a step reaches a terminal state. Steps running in a parallel batch
// read it during resolution, which happens in the single-threaded phase
// before the batch starts, so no locking is needed.
type ExecutionContext struct {
	Request models.Request
	Intent  models.Intent
	Memory  models.MemorySnapshot

	results map[string]*models.StepResult
}

// NewExecutionContext creates a context for one plan execution.
func NewExecutionContext(req models.Request, intent models.Intent, mem models.MemorySnapshot) *ExecutionContext {
	return &ExecutionContext{
		Request: req,
		Intent:  intent,
		Memory:  mem,
		results: make(map[string]*models.StepResult),
	}
}

// RecordResult stores a completed step's result. Scheduler-only.
func (ec *ExecutionContext) RecordResult(stepID string, res *models.StepResult) {
	ec.results[stepID] = res
}

// Result returns a completed step's result, or nil.
func (ec *ExecutionContext) Result(stepID string) *models.StepResult {
	return ec.results[stepID]
}

// Results returns a copy of the accumulated step results.
func (ec *ExecutionContext) Results() map[string]*models.StepResult {
	out := make(map[string]*models.StepResult, len(ec.results))
	for k, v := range ec.results {
		out[k] = v
	}
	return out
}
