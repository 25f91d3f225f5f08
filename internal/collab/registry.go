package collab

import (
	"context"
	"fmt"
	"sync"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

// InvokerRegistry dispatches step execution to the invoker registered
// for the step's type. Dispatch is a table lookup, not type switching
// at call sites.
type InvokerRegistry struct {
	mu       sync.RWMutex
	invokers map[models.StepType]Invoker
	fallback Invoker
}

// NewInvokerRegistry creates an empty registry.
func NewInvokerRegistry() *InvokerRegistry {
	return &InvokerRegistry{invokers: make(map[models.StepType]Invoker)}
}

// Register binds an invoker to a step type, replacing any previous binding.
func (r *InvokerRegistry) Register(t models.StepType, inv Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invokers[t] = inv
}

// SetFallback sets the invoker used for step types with no explicit binding.
func (r *InvokerRegistry) SetFallback(inv Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = inv
}

// Lookup returns the invoker for a step type, or an error if none is
// registered and no fallback is set.
func (r *InvokerRegistry) Lookup(t models.StepType) (Invoker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if inv, ok := r.invokers[t]; ok {
		return inv, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("no invoker registered for step type %s", t)
}

// Invoke dispatches to the invoker registered for the step's type.
func (r *InvokerRegistry) Invoke(ctx context.Context, step *models.TaskStep, params map[string]any) (*models.StepResult, error) {
	inv, err := r.Lookup(step.Type)
	if err != nil {
		return nil, err
	}
	return inv.Invoke(ctx, step, params)
}
