package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

// fakeInvoker scripts per-step behavior and records invocations.
type fakeInvoker struct {
	mu         sync.Mutex
	behaviors  map[string]func(ctx context.Context, params map[string]any) (*models.StepResult, error)
	calls      map[string]int
	order      []string
	active     int
	maxActive  int
	lastParams map[string]map[string]any
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		behaviors:  make(map[string]func(ctx context.Context, params map[string]any) (*models.StepResult, error)),
		calls:      make(map[string]int),
		lastParams: make(map[string]map[string]any),
	}
}

func (f *fakeInvoker) on(stepID string, fn func(ctx context.Context, params map[string]any) (*models.StepResult, error)) {
	f.behaviors[stepID] = fn
}

// failTimes fails the first n invocations, then succeeds.
func (f *fakeInvoker) failTimes(stepID string, n int) {
	count := 0
	f.on(stepID, func(_ context.Context, _ map[string]any) (*models.StepResult, error) {
		count++
		if count <= n {
			return nil, fmt.Errorf("transient failure %d", count)
		}
		return &models.StepResult{Output: map[string]any{"step": stepID}}, nil
	})
}

func (f *fakeInvoker) Invoke(ctx context.Context, step *models.TaskStep, params map[string]any) (*models.StepResult, error) {
	f.mu.Lock()
	f.calls[step.StepID]++
	f.order = append(f.order, step.StepID)
	f.lastParams[step.StepID] = params
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	fn := f.behaviors[step.StepID]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if fn != nil {
		return fn(ctx, params)
	}
	return &models.StepResult{Output: map[string]any{"step": step.StepID}}, nil
}

func newTestExecutor(inv StepInvoker) *Executor {
	return NewExecutor(inv, NewResolver(), Options{
		MaxParallel:        4,
		DefaultStepTimeout: 2 * time.Second,
		DefaultMaxRetries:  0,
	})
}

func emptyContext() *ExecutionContext {
	return NewExecutionContext(models.Request{ID: "req-1", Text: "request"}, models.Intent{}, models.MemorySnapshot{})
}

func seqStep(id string, deps ...string) *models.TaskStep {
	return &models.TaskStep{
		StepID:       id,
		Type:         models.StepTypeToolCall,
		Mode:         models.ModeSequential,
		Status:       models.StepStatusPending,
		Dependencies: deps,
		MaxRetries:   -1,
	}
}

func TestExecuteSequentialChainInOrder(t *testing.T) {
	inv := newFakeInvoker()
	e := newTestExecutor(inv)

	p := planWith(
		seqStep("verify"),
		seqStep("transfer", "verify"),
		seqStep("notify", "transfer"),
	)

	res := e.Execute(context.Background(), p, emptyContext())

	if res.Status != models.PlanStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED (%s)", res.Status, res.Reasoning)
	}
	want := []string{"verify", "transfer", "notify"}
	if strings.Join(inv.order, ",") != strings.Join(want, ",") {
		t.Errorf("invocation order = %v, want %v", inv.order, want)
	}
}

func TestExecuteDependencyNeverStartsBeforeTerminal(t *testing.T) {
	inv := newFakeInvoker()
	e := newTestExecutor(inv)

	p := planWith(
		seqStep("a"),
		seqStep("b", "a"),
		seqStep("c", "a", "b"),
	)

	res := e.Execute(context.Background(), p, emptyContext())
	if res.Status != models.PlanStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", res.Status)
	}

	// For every dependency edge u -> v: startTime(v) >= terminalTime(u).
	for _, v := range p.Steps {
		for _, dep := range v.Dependencies {
			u := p.Step(dep)
			if u.CompletedAt == nil || v.StartedAt == nil {
				t.Fatalf("missing timestamps on %s -> %s", dep, v.StepID)
			}
			if v.StartedAt.Before(*u.CompletedAt) {
				t.Errorf("step %s started before dependency %s finished", v.StepID, dep)
			}
		}
	}
}

func TestExecuteParallelBatchBounded(t *testing.T) {
	inv := newFakeInvoker()
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6"} {
		inv.on(id, func(_ context.Context, _ map[string]any) (*models.StepResult, error) {
			time.Sleep(20 * time.Millisecond)
			return &models.StepResult{}, nil
		})
	}
	e := NewExecutor(inv, NewResolver(), Options{
		MaxParallel:        2,
		DefaultStepTimeout: time.Second,
	})

	var steps []*models.TaskStep
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6"} {
		s := seqStep(id)
		s.Mode = models.ModeParallel
		steps = append(steps, s)
	}
	p := planWith(steps...)

	res := e.Execute(context.Background(), p, emptyContext())
	if res.Status != models.PlanStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", res.Status)
	}
	if inv.maxActive > 2 {
		t.Errorf("worker pool exceeded: %d concurrent invocations, limit 2", inv.maxActive)
	}
	if len(inv.order) != 6 {
		t.Errorf("expected all 6 parallel steps to run, got %d", len(inv.order))
	}
}

func TestExecuteTransferFailureSkipsNotify(t *testing.T) {
	inv := newFakeInvoker()
	inv.on("transfer", func(_ context.Context, _ map[string]any) (*models.StepResult, error) {
		return nil, errors.New("insufficient funds gateway timeout")
	})
	e := newTestExecutor(inv)

	transfer := seqStep("transfer", "verify")
	transfer.MaxRetries = 2

	p := planWith(seqStep("verify"), transfer, seqStep("notify", "transfer"))

	res := e.Execute(context.Background(), p, emptyContext())

	if res.Status != models.PlanStatusPartiallyFailed {
		t.Fatalf("status = %s, want PARTIALLY_FAILED (%s)", res.Status, res.Reasoning)
	}
	if got := p.Step("transfer").Status; got != models.StepStatusFailed {
		t.Errorf("transfer status = %s, want FAILED", got)
	}
	if got := p.Step("notify").Status; got != models.StepStatusSkipped {
		t.Errorf("notify status = %s, want SKIPPED", got)
	}
	if inv.calls["transfer"] != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", inv.calls["transfer"])
	}
	if inv.calls["notify"] != 0 {
		t.Errorf("notify must never be invoked, got %d calls", inv.calls["notify"])
	}
	if got := len(p.Step("transfer").History); got != 3 {
		t.Errorf("expected 3 recorded attempts, got %d", got)
	}
	if len(res.StepErrors) != 1 || res.StepErrors[0].StepID != "transfer" {
		t.Errorf("expected one step error for transfer, got %v", res.StepErrors)
	}
}

func TestExecuteRetryThenSucceed(t *testing.T) {
	inv := newFakeInvoker()
	inv.failTimes("flaky", 2)
	e := newTestExecutor(inv)

	flaky := seqStep("flaky")
	flaky.MaxRetries = 2
	p := planWith(flaky)

	res := e.Execute(context.Background(), p, emptyContext())

	if res.Status != models.PlanStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", res.Status)
	}
	if inv.calls["flaky"] != 3 {
		t.Errorf("expected 3 attempts, got %d", inv.calls["flaky"])
	}
}

func TestExecuteNonRetryableFailsImmediately(t *testing.T) {
	inv := newFakeInvoker()
	inv.on("validate", func(_ context.Context, _ map[string]any) (*models.StepResult, error) {
		return nil, fmt.Errorf("%w: amount exceeds limit", ErrNonRetryable)
	})
	e := newTestExecutor(inv)

	validate := seqStep("validate")
	validate.MaxRetries = 5
	p := planWith(validate)

	res := e.Execute(context.Background(), p, emptyContext())

	if res.Status != models.PlanStatusFailed {
		t.Fatalf("status = %s, want FAILED", res.Status)
	}
	if inv.calls["validate"] != 1 {
		t.Errorf("non-retryable error must not be retried, got %d attempts", inv.calls["validate"])
	}
}

func TestExecuteBindingFailureFailsOnlyThatStep(t *testing.T) {
	inv := newFakeInvoker()
	e := newTestExecutor(inv)

	broken := seqStep("broken")
	broken.Bindings = map[string]models.ParameterBinding{
		"account": {Source: models.SourcePreviousStep, Reference: "ghost.result.x", Required: true},
	}
	p := planWith(seqStep("ok"), broken)

	res := e.Execute(context.Background(), p, emptyContext())

	if res.Status != models.PlanStatusPartiallyFailed {
		t.Fatalf("status = %s, want PARTIALLY_FAILED (%s)", res.Status, res.Reasoning)
	}
	if got := p.Step("broken").Status; got != models.StepStatusFailed {
		t.Errorf("broken status = %s, want FAILED", got)
	}
	if got := p.Step("ok").Status; got != models.StepStatusCompleted {
		t.Errorf("ok status = %s, want COMPLETED", got)
	}
	if inv.calls["broken"] != 0 {
		t.Errorf("step with unresolved bindings must not be invoked, got %d calls", inv.calls["broken"])
	}
}

func TestExecuteParameterPropagation(t *testing.T) {
	inv := newFakeInvoker()
	inv.on("verify", func(_ context.Context, _ map[string]any) (*models.StepResult, error) {
		return &models.StepResult{Output: map[string]any{"account_number": "ACC-7"}}, nil
	})
	e := newTestExecutor(inv)

	transfer := seqStep("transfer", "verify")
	transfer.Bindings = map[string]models.ParameterBinding{
		"account": {Source: models.SourcePreviousStep, Reference: "verify.result.account_number", Required: true},
	}
	p := planWith(seqStep("verify"), transfer)

	res := e.Execute(context.Background(), p, emptyContext())

	if res.Status != models.PlanStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED (%s)", res.Status, res.Reasoning)
	}
	if got := inv.lastParams["transfer"]["account"]; got != "ACC-7" {
		t.Errorf("transfer account param = %v, want ACC-7", got)
	}
}

func TestExecuteConditionalGuard(t *testing.T) {
	inv := newFakeInvoker()
	inv.on("check", func(_ context.Context, _ map[string]any) (*models.StepResult, error) {
		return &models.StepResult{Output: map[string]any{"approved": false}}, nil
	})
	e := newTestExecutor(inv)

	gated := seqStep("gated", "check")
	gated.Mode = models.ModeConditional
	gated.Condition = "check.approved"
	p := planWith(seqStep("check"), gated)

	res := e.Execute(context.Background(), p, emptyContext())

	if got := p.Step("gated").Status; got != models.StepStatusSkipped {
		t.Errorf("gated status = %s, want SKIPPED", got)
	}
	if inv.calls["gated"] != 0 {
		t.Errorf("guarded step must not run on false guard, got %d calls", inv.calls["gated"])
	}
	if res.Status != models.PlanStatusPartiallyFailed {
		t.Errorf("status = %s, want PARTIALLY_FAILED", res.Status)
	}
}

func TestExecuteConditionalGuardTrue(t *testing.T) {
	inv := newFakeInvoker()
	inv.on("check", func(_ context.Context, _ map[string]any) (*models.StepResult, error) {
		return &models.StepResult{Output: map[string]any{"approved": true}}, nil
	})
	e := newTestExecutor(inv)

	gated := seqStep("gated", "check")
	gated.Mode = models.ModeConditional
	gated.Condition = "check.approved"
	p := planWith(seqStep("check"), gated)

	res := e.Execute(context.Background(), p, emptyContext())

	if res.Status != models.PlanStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED (%s)", res.Status, res.Reasoning)
	}
	if inv.calls["gated"] != 1 {
		t.Errorf("expected guarded step to run once, got %d", inv.calls["gated"])
	}
}

func TestExecuteCompensationRunsOnFailure(t *testing.T) {
	inv := newFakeInvoker()
	inv.on("transfer", func(_ context.Context, _ map[string]any) (*models.StepResult, error) {
		return nil, errors.New("downstream unavailable")
	})
	e := newTestExecutor(inv)

	rollback := seqStep("rollback", "transfer")
	rollback.RunOnFailure = true
	p := planWith(seqStep("transfer"), rollback)

	res := e.Execute(context.Background(), p, emptyContext())

	if got := p.Step("rollback").Status; got != models.StepStatusCompleted {
		t.Errorf("rollback status = %s, want COMPLETED", got)
	}
	if inv.calls["rollback"] != 1 {
		t.Errorf("expected compensation step to run, got %d calls", inv.calls["rollback"])
	}
	if res.Status != models.PlanStatusPartiallyFailed {
		t.Errorf("status = %s, want PARTIALLY_FAILED", res.Status)
	}
}

func TestExecuteCompensationSkippedWhenTransferSucceeds(t *testing.T) {
	inv := newFakeInvoker()
	e := newTestExecutor(inv)

	rollback := seqStep("rollback", "transfer")
	rollback.RunOnFailure = true
	p := planWith(seqStep("transfer"), rollback)

	res := e.Execute(context.Background(), p, emptyContext())

	if got := p.Step("rollback").Status; got != models.StepStatusSkipped {
		t.Errorf("rollback status = %s, want SKIPPED", got)
	}
	if inv.calls["rollback"] != 0 {
		t.Errorf("compensation must not run when nothing failed, got %d calls", inv.calls["rollback"])
	}
	if res.Status != models.PlanStatusCompleted {
		t.Errorf("status = %s, want COMPLETED (%s)", res.Status, res.Reasoning)
	}
}

func TestExecuteStructuralErrorAbortsBeforeAnyStep(t *testing.T) {
	inv := newFakeInvoker()
	e := newTestExecutor(inv)

	p := planWith(
		seqStep("a", "b"),
		seqStep("b", "a"),
	)

	res := e.Execute(context.Background(), p, emptyContext())

	if res.Status != models.PlanStatusFailed {
		t.Fatalf("status = %s, want FAILED", res.Status)
	}
	if res.StructuralError == "" {
		t.Error("expected structural error to be reported")
	}
	if len(res.StepErrors) != 0 {
		t.Errorf("structural errors must be distinct from step errors, got %v", res.StepErrors)
	}
	if len(inv.order) != 0 {
		t.Errorf("no step may run in a rejected plan, got %v", inv.order)
	}
}

func TestExecutePlanDeadline(t *testing.T) {
	inv := newFakeInvoker()
	inv.on("slow", func(ctx context.Context, _ map[string]any) (*models.StepResult, error) {
		select {
		case <-time.After(5 * time.Second):
			return &models.StepResult{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	e := NewExecutor(inv, NewResolver(), Options{
		MaxParallel:        2,
		DefaultStepTimeout: 10 * time.Second,
		PlanTimeout:        100 * time.Millisecond,
	})

	p := planWith(seqStep("fast"), seqStep("slow", "fast"), seqStep("after", "slow"))

	res := e.Execute(context.Background(), p, emptyContext())

	if res.Status != models.PlanStatusFailed {
		t.Fatalf("status = %s, want FAILED", res.Status)
	}
	if !strings.Contains(res.Reasoning, "deadline") {
		t.Errorf("expected deadline in reasoning, got %q", res.Reasoning)
	}
	// Completed steps retain their results for diagnostics.
	if got := p.Step("fast").Status; got != models.StepStatusCompleted {
		t.Errorf("fast status = %s, want COMPLETED", got)
	}
	if _, ok := res.Results["fast"]; !ok {
		t.Error("expected completed step result preserved after deadline")
	}
	if inv.calls["after"] != 0 {
		t.Errorf("step after deadline must not run, got %d calls", inv.calls["after"])
	}
}

func TestExecuteCriticalStepFailureFailsPlan(t *testing.T) {
	inv := newFakeInvoker()
	inv.on("critical", func(_ context.Context, _ map[string]any) (*models.StepResult, error) {
		return nil, errors.New("boom")
	})
	e := newTestExecutor(inv)

	crit := seqStep("critical")
	crit.Critical = true
	p := planWith(seqStep("ok"), crit)

	res := e.Execute(context.Background(), p, emptyContext())

	if res.Status != models.PlanStatusFailed {
		t.Fatalf("status = %s, want FAILED (%s)", res.Status, res.Reasoning)
	}
}

func TestExecuteMixedParallelAndSequential(t *testing.T) {
	inv := newFakeInvoker()
	e := newTestExecutor(inv)

	fanA := seqStep("fan_a", "root")
	fanA.Mode = models.ModeParallel
	fanB := seqStep("fan_b", "root")
	fanB.Mode = models.ModeParallel
	p := planWith(
		seqStep("root"),
		fanA,
		fanB,
		seqStep("join", "fan_a", "fan_b"),
	)

	res := e.Execute(context.Background(), p, emptyContext())

	if res.Status != models.PlanStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED (%s)", res.Status, res.Reasoning)
	}
	if inv.order[0] != "root" {
		t.Errorf("root must run first, got order %v", inv.order)
	}
	if inv.order[len(inv.order)-1] != "join" {
		t.Errorf("join must run last, got order %v", inv.order)
	}
}
