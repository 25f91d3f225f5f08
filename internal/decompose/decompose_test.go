package decompose

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/switchboard-ai/switchboard/internal/collab"
	"github.com/switchboard-ai/switchboard/pkg/models"
)

type fakePlanner struct {
	subtasks []collab.SubTask
	err      error
}

func (f *fakePlanner) Plan(_ context.Context, _ models.Request, _ models.Intent, _ models.MemorySnapshot) ([]collab.SubTask, error) {
	return f.subtasks, f.err
}

type fakeSelector struct{}

func (fakeSelector) Select(_ context.Context, step *models.TaskStep) (models.CollaboratorSelection, error) {
	return models.CollaboratorSelection{Kind: models.CollaboratorTool, Name: step.StepID + "_tool"}, nil
}

func newTestDecomposer(subtasks []collab.SubTask) *Decomposer {
	return New(&fakePlanner{subtasks: subtasks}, fakeSelector{}, Options{
		StepTimeout: 10 * time.Second,
		MaxRetries:  2,
	})
}

func request() (models.Request, models.Intent, models.MemorySnapshot) {
	return models.Request{ID: "req-1", Text: "transfer $100 to John and notify me"},
		models.Intent{Type: models.IntentTransactional, Domain: "banking"},
		models.MemorySnapshot{}
}

func TestDecomposeSequentialChain(t *testing.T) {
	d := newTestDecomposer([]collab.SubTask{
		{ID: "verify", Description: "verify funds", Type: models.StepTypeValidation},
		{ID: "transfer", Description: "execute transfer", Type: models.StepTypeToolCall, DependsOn: []string{"verify"}, Critical: true},
		{ID: "notify", Description: "notify user", Type: models.StepTypeToolCall, DependsOn: []string{"transfer"}},
	})

	req, intent, mem := request()
	p, err := d.Decompose(context.Background(), req, intent, mem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(p.Steps))
	}
	for _, s := range p.Steps {
		if s.Mode != models.ModeSequential {
			t.Errorf("step %s mode = %s, want SEQUENTIAL", s.StepID, s.Mode)
		}
	}
	if got := p.Step("transfer").Dependencies; len(got) != 1 || got[0] != "verify" {
		t.Errorf("transfer dependencies = %v, want [verify]", got)
	}
	// Reverse edges are maintained.
	if got := p.Step("verify").Dependents; len(got) != 1 || got[0] != "transfer" {
		t.Errorf("verify dependents = %v, want [transfer]", got)
	}
	if !p.Step("transfer").Critical {
		t.Error("expected critical flag carried through")
	}
	if got := p.Step("verify").Selection.Name; got != "verify_tool" {
		t.Errorf("expected selector-assigned collaborator, got %q", got)
	}
}

func TestDecomposeFanOutIsParallel(t *testing.T) {
	d := newTestDecomposer([]collab.SubTask{
		{ID: "fetch", Description: "fetch data"},
		{ID: "analyze_a", Description: "analyze region a", DependsOn: []string{"fetch"}},
		{ID: "analyze_b", Description: "analyze region b", DependsOn: []string{"fetch"}},
		{ID: "report", Description: "combine", DependsOn: []string{"analyze_a", "analyze_b"}},
	})

	req, intent, mem := request()
	p, err := d.Decompose(context.Background(), req, intent, mem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := p.Step("analyze_a").Mode; got != models.ModeParallel {
		t.Errorf("analyze_a mode = %s, want PARALLEL", got)
	}
	if got := p.Step("analyze_b").Mode; got != models.ModeParallel {
		t.Errorf("analyze_b mode = %s, want PARALLEL", got)
	}
	if got := p.Step("report").Mode; got != models.ModeSequential {
		t.Errorf("report mode = %s, want SEQUENTIAL", got)
	}
}

func TestDecomposeGuardedStepIsConditional(t *testing.T) {
	d := newTestDecomposer([]collab.SubTask{
		{ID: "check", Description: "check balance"},
		{ID: "escalate", Description: "escalate", DependsOn: []string{"check"}, Condition: "check.over_limit"},
	})

	req, intent, mem := request()
	p, err := d.Decompose(context.Background(), req, intent, mem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	step := p.Step("escalate")
	if step.Mode != models.ModeConditional {
		t.Errorf("mode = %s, want CONDITIONAL", step.Mode)
	}
	if step.Condition != "check.over_limit" {
		t.Errorf("condition = %q, want check.over_limit", step.Condition)
	}
}

func TestDecomposeIndependentStepsAreParallel(t *testing.T) {
	d := newTestDecomposer([]collab.SubTask{
		{ID: "weather", Description: "get weather"},
		{ID: "news", Description: "get news"},
	})

	req, intent, mem := request()
	p, err := d.Decompose(context.Background(), req, intent, mem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range p.Steps {
		if s.Mode != models.ModeParallel {
			t.Errorf("step %s mode = %s, want PARALLEL", s.StepID, s.Mode)
		}
	}
}

func TestDecomposeRejectsCyclicBreakdown(t *testing.T) {
	d := newTestDecomposer([]collab.SubTask{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	})

	req, intent, mem := request()
	if _, err := d.Decompose(context.Background(), req, intent, mem); err == nil {
		t.Fatal("expected error for cyclic breakdown")
	}
}

func TestDecomposeRejectsDanglingDependency(t *testing.T) {
	d := newTestDecomposer([]collab.SubTask{
		{ID: "a", DependsOn: []string{"ghost"}},
	})

	req, intent, mem := request()
	if _, err := d.Decompose(context.Background(), req, intent, mem); err == nil {
		t.Fatal("expected error for dangling dependency")
	}
}

func TestDecomposePlannerErrorPropagates(t *testing.T) {
	d := New(&fakePlanner{err: errors.New("model overloaded")}, fakeSelector{}, Options{})

	req, intent, mem := request()
	if _, err := d.Decompose(context.Background(), req, intent, mem); err == nil {
		t.Fatal("expected planner error to propagate")
	}
}

func TestDecomposeEmptyBreakdownIsError(t *testing.T) {
	d := newTestDecomposer(nil)

	req, intent, mem := request()
	if _, err := d.Decompose(context.Background(), req, intent, mem); err == nil {
		t.Fatal("expected error for empty breakdown")
	}
}
