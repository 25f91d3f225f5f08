// Package plan owns the task plan DAG: structural validation,
// parameter resolution, and the scheduler that executes plans with
// dependency ordering and bounded parallelism.
package plan

import (
	"errors"
	"fmt"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

// ErrCycleDetected indicates a circular dependency in a task plan.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrUnknownDependency indicates a step depends on an ID not present in
// the plan.
var ErrUnknownDependency = errors.New("dependency references unknown step")

// Finalize validates a plan's structure and fills in the reverse
// dependency edges. Both the decomposer and the flow executor call this
// before handing a plan to the executor; the executor calls it again
// and treats failure as a structural error distinct from step failures.
func Finalize(p *models.TaskPlan) error {
	index := make(map[string]*models.TaskStep, len(p.Steps))
	for _, s := range p.Steps {
		if s.StepID == "" {
			return fmt.Errorf("step with empty step_id")
		}
		if _, dup := index[s.StepID]; dup {
			return fmt.Errorf("duplicate step id %s", s.StepID)
		}
		index[s.StepID] = s
		s.Dependents = nil
	}

	for _, s := range p.Steps {
		for _, dep := range s.Dependencies {
			target, ok := index[dep]
			if !ok {
				return fmt.Errorf("step %s: %w: %s", s.StepID, ErrUnknownDependency, dep)
			}
			target.Dependents = append(target.Dependents, s.StepID)
		}
	}

	if hasCycle(p, index) {
		return ErrCycleDetected
	}
	return nil
}

// hasCycle runs a depth-first search with coloring to detect back edges.
func hasCycle(p *models.TaskPlan, index map[string]*models.TaskStep) bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(p.Steps))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, dep := range index[id].Dependencies {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, s := range p.Steps {
		if colors[s.StepID] == 0 {
			if visit(s.StepID) {
				return true
			}
		}
	}
	return false
}

// TopologicalOrder returns step IDs so that every dependency precedes
// its dependents, preserving declaration order among unordered steps.
func TopologicalOrder(p *models.TaskPlan) ([]string, error) {
	index := make(map[string]*models.TaskStep, len(p.Steps))
	for _, s := range p.Steps {
		index[s.StepID] = s
	}
	if hasCycle(p, index) {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(p.Steps))
	var order []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range index[id].Dependencies {
			visit(dep)
		}
		order = append(order, id)
	}

	for _, s := range p.Steps {
		visit(s.StepID)
	}
	return order, nil
}
