// Package decompose translates the externally supplied breakdown of a
// complex request into a validated task plan.
package decompose

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/switchboard-ai/switchboard/internal/collab"
	"github.com/switchboard-ai/switchboard/internal/plan"
	"github.com/switchboard-ai/switchboard/pkg/models"
)

// Options configures step defaults applied during decomposition.
type Options struct {
	// StepTimeout applies to steps whose subtask declares none.
	StepTimeout time.Duration
	// MaxRetries applies to steps whose subtask declares none.
	MaxRetries int
}

// Decomposer builds task plans for complex requests. The subtask
// breakdown comes from the planner collaborator; the decomposer owns
// execution-mode assignment, collaborator selection, and the
// structural guarantees the executor relies on.
type Decomposer struct {
	planner  collab.Planner
	selector collab.Selector
	opts     Options
}

// New creates a decomposer.
func New(planner collab.Planner, selector collab.Selector, opts Options) *Decomposer {
	return &Decomposer{planner: planner, selector: selector, opts: opts}
}

// Decompose produces a task plan whose DAG is guaranteed acyclic with
// all dependencies resolving inside the plan. A breakdown that violates
// either property is a construction-time error, never an executor
// concern.
func (d *Decomposer) Decompose(ctx context.Context, req models.Request, intent models.Intent, mem models.MemorySnapshot) (*models.TaskPlan, error) {
	subtasks, err := d.planner.Plan(ctx, req, intent, mem)
	if err != nil {
		return nil, fmt.Errorf("plan request: %w", err)
	}
	if len(subtasks) == 0 {
		return nil, fmt.Errorf("planner returned no subtasks")
	}

	p := &models.TaskPlan{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		Status:    models.PlanStatusPending,
		CreatedAt: time.Now(),
	}

	modes := assignModes(subtasks)

	for _, st := range subtasks {
		step := &models.TaskStep{
			StepID:       st.ID,
			Description:  st.Description,
			Type:         st.Type,
			Bindings:     st.Bindings,
			Dependencies: append([]string(nil), st.DependsOn...),
			Mode:         modes[st.ID],
			Condition:    st.Condition,
			Status:       models.StepStatusPending,
			Timeout:      d.opts.StepTimeout,
			MaxRetries:   d.opts.MaxRetries,
			Critical:     st.Critical,
			RunOnFailure: st.RunOnFailure,
		}
		if step.Type == "" {
			step.Type = models.StepTypeToolCall
		}

		sel, err := d.selector.Select(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("select collaborator for step %s: %w", st.ID, err)
		}
		step.Selection = sel

		p.Steps = append(p.Steps, step)
	}

	if err := plan.Finalize(p); err != nil {
		return nil, fmt.Errorf("invalid decomposition: %w", err)
	}
	return p, nil
}

// assignModes derives each step's execution mode from the shape of the
// dependency graph:
//   - a guarded subtask is CONDITIONAL,
//   - unordered subtasks (no edges at all, or several sharing the exact
//     same dependencies with no edges between them) are PARALLEL,
//   - everything on a strict chain is SEQUENTIAL.
func assignModes(subtasks []collab.SubTask) map[string]models.ExecutionMode {
	dependents := make(map[string]int)
	for _, st := range subtasks {
		for _, dep := range st.DependsOn {
			dependents[dep]++
		}
	}

	groups := make(map[string]int)
	for _, st := range subtasks {
		groups[depsKey(st.DependsOn)]++
	}

	modes := make(map[string]models.ExecutionMode, len(subtasks))
	for _, st := range subtasks {
		switch {
		case st.Condition != "":
			modes[st.ID] = models.ModeConditional
		case len(st.DependsOn) == 0 && dependents[st.ID] == 0 && len(subtasks) > 1:
			modes[st.ID] = models.ModeParallel
		case groups[depsKey(st.DependsOn)] > 1:
			modes[st.ID] = models.ModeParallel
		default:
			modes[st.ID] = models.ModeSequential
		}
	}
	return modes
}

// depsKey normalizes a dependency set into a map key.
func depsKey(deps []string) string {
	if len(deps) == 0 {
		return ""
	}
	sorted := append([]string(nil), deps...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
