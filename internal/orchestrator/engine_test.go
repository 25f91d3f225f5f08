package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/switchboard-ai/switchboard/internal/collab"
	"github.com/switchboard-ai/switchboard/internal/config"
	"github.com/switchboard-ai/switchboard/internal/flow"
	"github.com/switchboard-ai/switchboard/pkg/models"
)

type fakeClassifier struct {
	intent models.Intent
	err    error
}

func (f *fakeClassifier) Classify(_ context.Context, _ string, _ models.MemorySnapshot) (models.Intent, error) {
	return f.intent, f.err
}

type fakeMemory struct {
	mem models.MemorySnapshot
	err error
}

func (f *fakeMemory) Retrieve(_ context.Context, _ string) (models.MemorySnapshot, error) {
	return f.mem, f.err
}

type fakeSelector struct{}

func (fakeSelector) Select(_ context.Context, step *models.TaskStep) (models.CollaboratorSelection, error) {
	return models.CollaboratorSelection{Kind: models.CollaboratorTool, Name: step.StepID}, nil
}

type fakeResponder struct {
	text  string
	err   error
	calls int
}

func (f *fakeResponder) Respond(_ context.Context, _ models.Request, _ models.Intent, _ models.MemorySnapshot) (string, error) {
	f.calls++
	return f.text, f.err
}

// fakeInvoker returns a scripted result per step ID and records the
// parameters each step received.
type fakeInvoker struct {
	results map[string]*models.StepResult
	params  map[string]map[string]any
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		results: make(map[string]*models.StepResult),
		params:  make(map[string]map[string]any),
	}
}

func (f *fakeInvoker) Invoke(_ context.Context, step *models.TaskStep, params map[string]any) (*models.StepResult, error) {
	f.params[step.StepID] = params
	if res, ok := f.results[step.StepID]; ok {
		return res, nil
	}
	return &models.StepResult{Text: step.StepID + " done"}, nil
}

type fakeMatcher struct {
	flow *models.FlowDefinition
}

func (f *fakeMatcher) Match(_ context.Context, _ models.Intent, _ string) (*models.FlowDefinition, error) {
	return f.flow, nil
}

type recordingAuditor struct {
	plans []models.ExecutionPath
}

func (r *recordingAuditor) RecordPlan(_ *models.TaskPlan, _ *models.TaskPlanResult, path models.ExecutionPath) error {
	r.plans = append(r.plans, path)
	return nil
}

type engineFixture struct {
	engine    *Engine
	responder *fakeResponder
	invoker   *fakeInvoker
	auditor   *recordingAuditor
	flows     *flow.Registry
}

func newEngineFixture(t *testing.T, classifier *fakeClassifier, matcher *fakeMatcher, planner *fakePlanner) *engineFixture {
	t.Helper()

	responder := &fakeResponder{text: "direct answer"}
	invoker := newFakeInvoker()
	auditor := &recordingAuditor{}
	flows := flow.NewRegistry()

	deps := Deps{
		Classifier: classifier,
		Memory:     &fakeMemory{},
		Selector:   fakeSelector{},
		Invokers:   invoker,
		Responder:  responder,
		Flows:      flows,
		Auditor:    auditor,
		Logger:     NopLogger(),
	}
	if matcher != nil {
		deps.Matcher = matcher
	}
	if planner != nil {
		deps.Planner = planner
	}

	engine, err := NewEngine(config.Default(), deps)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return &engineFixture{
		engine:    engine,
		responder: responder,
		invoker:   invoker,
		auditor:   auditor,
		flows:     flows,
	}
}

type fakePlanner struct {
	subtasks []subtaskSpec
}

type subtaskSpec struct {
	id        string
	dependsOn []string
}

func (f *fakePlanner) Plan(_ context.Context, _ models.Request, _ models.Intent, _ models.MemorySnapshot) ([]collab.SubTask, error) {
	var out []collab.SubTask
	for _, s := range f.subtasks {
		out = append(out, collab.SubTask{
			ID:          s.id,
			Description: s.id,
			Type:        models.StepTypeToolCall,
			DependsOn:   s.dependsOn,
		})
	}
	return out, nil
}

func TestHandleSimplePath(t *testing.T) {
	fx := newEngineFixture(t, &fakeClassifier{
		intent: models.Intent{Type: models.IntentInformational, Domain: "general"},
	}, nil, nil)

	resp, err := fx.engine.Handle(context.Background(), models.Request{Text: "What is machine learning?"})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if resp.Decision.Path != models.PathSimple {
		t.Errorf("path = %s, want SIMPLE", resp.Decision.Path)
	}
	if resp.Text != "direct answer" {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Plan != nil {
		t.Error("simple path should not build a plan")
	}
	if fx.responder.calls != 1 {
		t.Errorf("responder calls = %d, want 1", fx.responder.calls)
	}
}

func TestHandleClassifierFailureFallsBackToSimple(t *testing.T) {
	fx := newEngineFixture(t, &fakeClassifier{err: errors.New("model unavailable")}, nil, nil)

	resp, err := fx.engine.Handle(context.Background(), models.Request{Text: "do something complicated"})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if resp.Decision.Path != models.PathSimple {
		t.Errorf("path = %s, want SIMPLE on classification failure", resp.Decision.Path)
	}
	if fx.responder.calls != 1 {
		t.Error("expected direct response despite classification failure")
	}
}

func TestHandleMediumPath(t *testing.T) {
	fx := newEngineFixture(t, &fakeClassifier{
		intent: models.Intent{
			Type:     models.IntentTransactional,
			Domain:   "commerce",
			Entities: []models.Entity{{Name: "order", Value: "ORD-1"}},
		},
	}, nil, nil)
	fx.invoker.results["execute"] = &models.StepResult{Text: "order cancelled"}

	req := models.Request{Text: "Cancel my order"}
	resp, err := fx.engine.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if resp.Decision.Path != models.PathMedium {
		t.Errorf("path = %s, want MEDIUM", resp.Decision.Path)
	}
	if resp.Text != "order cancelled" {
		t.Errorf("text = %q", resp.Text)
	}
	if got := fx.invoker.params["execute"]["request"]; got != "Cancel my order" {
		t.Errorf("request param = %v", got)
	}
	if resp.Result == nil || resp.Result.Status != models.PlanStatusCompleted {
		t.Errorf("expected completed single-step plan, got %+v", resp.Result)
	}
	if len(fx.auditor.plans) != 1 || fx.auditor.plans[0] != models.PathMedium {
		t.Errorf("audit records = %v", fx.auditor.plans)
	}
}

func TestHandlePredefinedPath(t *testing.T) {
	def := &models.FlowDefinition{
		FlowID:    "weather_lookup",
		IntentKey: "INFORMATIONAL:weather",
		Template: models.TaskTemplate{Steps: []models.StepTemplate{
			{StepID: "lookup", Type: models.StepTypeToolCall, Mode: models.ModeSequential},
			{StepID: "respond", Type: models.StepTypeAgentCall, Mode: models.ModeSequential, DependsOn: []string{"lookup"}},
		}},
	}

	fx := newEngineFixture(t, &fakeClassifier{
		intent: models.Intent{Type: models.IntentInformational, Domain: "weather"},
	}, &fakeMatcher{flow: def}, nil)

	if err := fx.flows.Register(def); err != nil {
		t.Fatalf("register flow: %v", err)
	}
	fx.invoker.results["respond"] = &models.StepResult{Text: "Sunny, 22C"}

	resp, err := fx.engine.Handle(context.Background(), models.Request{Text: "weather in Paris"})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if resp.Decision.Path != models.PathPredefined {
		t.Errorf("path = %s, want PREDEFINED", resp.Decision.Path)
	}
	if resp.Text != "Sunny, 22C" {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Metadata.FlowID != "weather_lookup" {
		t.Errorf("metadata flow id = %q", resp.Metadata.FlowID)
	}
	if got := fx.flows.Get("weather_lookup").Metrics.UsageCount; got != 1 {
		t.Errorf("flow usage count = %d, want 1", got)
	}
	if got := fx.flows.Get("weather_lookup").Metrics.SuccessCount; got != 1 {
		t.Errorf("flow success count = %d, want 1", got)
	}
}

func TestHandleComplexPath(t *testing.T) {
	planner := &fakePlanner{subtasks: []subtaskSpec{
		{id: "verify"},
		{id: "transfer", dependsOn: []string{"verify"}},
		{id: "notify", dependsOn: []string{"transfer"}},
	}}

	fx := newEngineFixture(t, &fakeClassifier{
		intent: models.Intent{
			Type:   models.IntentTransactional,
			Domain: "banking",
			Entities: []models.Entity{
				{Name: "amount", Value: "$100"},
				{Name: "recipient", Value: "John"},
			},
		},
	}, nil, planner)
	fx.invoker.results["notify"] = &models.StepResult{Text: "John has been notified"}

	resp, err := fx.engine.Handle(context.Background(), models.Request{Text: "Transfer $100 to John and notify me"})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if resp.Decision.Path != models.PathComplex {
		t.Errorf("path = %s, want COMPLEX", resp.Decision.Path)
	}
	if resp.Plan == nil || len(resp.Plan.Steps) != 3 {
		t.Fatalf("expected 3-step plan, got %+v", resp.Plan)
	}
	if resp.Result.Status != models.PlanStatusCompleted {
		t.Errorf("plan status = %s, want COMPLETED", resp.Result.Status)
	}
	if resp.Text != "John has been notified" {
		t.Errorf("text = %q", resp.Text)
	}
	if len(fx.auditor.plans) != 1 || fx.auditor.plans[0] != models.PathComplex {
		t.Errorf("audit records = %v", fx.auditor.plans)
	}
}

func TestHandleComplexWithoutPlannerFails(t *testing.T) {
	fx := newEngineFixture(t, &fakeClassifier{
		intent: models.Intent{
			Type:   models.IntentTransactional,
			Domain: "banking",
			Entities: []models.Entity{
				{Name: "amount", Value: "$100"},
				{Name: "recipient", Value: "John"},
			},
		},
	}, nil, nil)

	if _, err := fx.engine.Handle(context.Background(), models.Request{Text: "Transfer $100 to John and notify me"}); err == nil {
		t.Error("expected error when complex path has no planner")
	}
}

func TestHandleAssignsRequestID(t *testing.T) {
	fx := newEngineFixture(t, &fakeClassifier{
		intent: models.Intent{Type: models.IntentInformational, Domain: "general"},
	}, nil, nil)

	resp, err := fx.engine.Handle(context.Background(), models.Request{Text: "What is Go?"})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if resp.Metadata.RequestID == "" {
		t.Error("expected generated request ID in metadata")
	}
	if resp.Metadata.ExecutionPath != models.PathSimple {
		t.Errorf("metadata path = %s", resp.Metadata.ExecutionPath)
	}
	if resp.Metadata.Duration <= 0 {
		t.Error("expected positive handling duration")
	}
}
