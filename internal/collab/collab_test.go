package collab

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

type stubInvoker struct {
	name  string
	calls int
}

func (s *stubInvoker) Invoke(_ context.Context, _ *models.TaskStep, _ map[string]any) (*models.StepResult, error) {
	s.calls++
	return &models.StepResult{Text: s.name}, nil
}

func TestRegistryDispatchesByStepType(t *testing.T) {
	r := NewInvokerRegistry()
	tool := &stubInvoker{name: "tool"}
	agent := &stubInvoker{name: "agent"}
	r.Register(models.StepTypeToolCall, tool)
	r.Register(models.StepTypeAgentCall, agent)

	step := &models.TaskStep{StepID: "s", Type: models.StepTypeAgentCall}
	res, err := r.Invoke(context.Background(), step, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "agent" {
		t.Errorf("dispatched to %q, want agent", res.Text)
	}
	if tool.calls != 0 {
		t.Error("tool invoker should not have been called")
	}
}

func TestRegistryFallback(t *testing.T) {
	r := NewInvokerRegistry()
	fallback := &stubInvoker{name: "fallback"}
	r.SetFallback(fallback)

	step := &models.TaskStep{StepID: "s", Type: models.StepTypeDecision}
	res, err := r.Invoke(context.Background(), step, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "fallback" {
		t.Errorf("dispatched to %q, want fallback", res.Text)
	}
}

func TestRegistryUnboundTypeFails(t *testing.T) {
	r := NewInvokerRegistry()

	step := &models.TaskStep{StepID: "s", Type: models.StepTypeToolCall}
	if _, err := r.Invoke(context.Background(), step, nil); err == nil {
		t.Error("expected error for unbound step type with no fallback")
	}
}

func TestRuleSelector(t *testing.T) {
	cases := []struct {
		stepType models.StepType
		want     models.CollaboratorKind
	}{
		{models.StepTypeToolCall, models.CollaboratorTool},
		{models.StepTypeValidation, models.CollaboratorTool},
		{models.StepTypeDataTransform, models.CollaboratorTool},
		{models.StepTypeAgentCall, models.CollaboratorAgent},
		{models.StepTypeDecision, models.CollaboratorAgent},
	}
	for _, tc := range cases {
		sel, err := RuleSelector{}.Select(context.Background(), &models.TaskStep{
			StepID: "step",
			Type:   tc.stepType,
		})
		if err != nil {
			t.Fatalf("Select(%s) failed: %v", tc.stepType, err)
		}
		if sel.Kind != tc.want {
			t.Errorf("Select(%s) kind = %s, want %s", tc.stepType, sel.Kind, tc.want)
		}
		if sel.Name != "step" {
			t.Errorf("Select(%s) name = %q, want step", tc.stepType, sel.Name)
		}
	}
}

func TestConversationStore(t *testing.T) {
	s := NewConversationStore()
	ctx := context.Background()

	// Unknown conversations are empty, not errors.
	snap, err := s.Retrieve(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if snap.Turns != 0 || len(snap.Items) != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}

	s.AddTurn("conv-1")
	s.AddTurn("conv-1")
	s.Remember("conv-1", "preferred_account", "checking")

	snap, err = s.Retrieve(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if snap.Turns != 2 {
		t.Errorf("turns = %d, want 2", snap.Turns)
	}
	if snap.Items["preferred_account"] != "checking" {
		t.Errorf("items = %v", snap.Items)
	}

	// Mutating the returned copy must not leak into the store.
	snap.Items["preferred_account"] = "savings"
	again, _ := s.Retrieve(ctx, "conv-1")
	if again.Items["preferred_account"] != "checking" {
		t.Error("Retrieve should return a copy")
	}
}

func TestErrUnavailableWrapping(t *testing.T) {
	err := fmt.Errorf("%w: %v", ErrUnavailable, errors.New("dial tcp: timeout"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatal("expected wrapped ErrUnavailable to match")
	}
}
