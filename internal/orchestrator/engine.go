package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/switchboard-ai/switchboard/internal/collab"
	"github.com/switchboard-ai/switchboard/internal/complexity"
	"github.com/switchboard-ai/switchboard/internal/config"
	"github.com/switchboard-ai/switchboard/internal/decompose"
	"github.com/switchboard-ai/switchboard/internal/flow"
	"github.com/switchboard-ai/switchboard/internal/plan"
	"github.com/switchboard-ai/switchboard/internal/router"
	"github.com/switchboard-ai/switchboard/pkg/models"
)

// Responder produces direct answers for requests routed to the simple
// path.
type Responder interface {
	Respond(ctx context.Context, req models.Request, intent models.Intent, mem models.MemorySnapshot) (string, error)
}

// Auditor persists plan execution records. Nil disables auditing.
type Auditor interface {
	RecordPlan(p *models.TaskPlan, result *models.TaskPlanResult, path models.ExecutionPath) error
}

// Response is the engine's answer to one request.
type Response struct {
	// Text is the user-facing answer.
	Text string
	// Decision is the routing decision that selected the path.
	Decision models.RoutingDecision
	// Plan is the executed task plan, nil for the simple path.
	Plan *models.TaskPlan
	// Result is the plan outcome, nil for the simple path.
	Result *models.TaskPlanResult
	// Metadata summarizes handling for callers and logs.
	Metadata models.ResponseMetadata
}

// Deps bundles the collaborators and components an Engine needs.
type Deps struct {
	Classifier collab.Classifier
	Memory     collab.Memory
	Selector   collab.Selector
	Invokers   plan.StepInvoker
	Responder  Responder
	Planner    collab.Planner

	Flows   *flow.Registry
	Matcher router.FlowMatcher
	Auditor Auditor
	Logger  *DebugLogger
}

// Engine handles requests end to end: memory retrieval, intent
// classification, complexity scoring, routing, and execution on the
// selected path.
type Engine struct {
	cfg        *config.Config
	classifier collab.Classifier
	memory     collab.Memory
	selector   collab.Selector
	invokers   plan.StepInvoker
	responder  Responder
	scorer     *complexity.Scorer
	router     *router.Router
	flows      *flow.Registry
	decomposer *decompose.Decomposer
	auditor    Auditor
	logger     *DebugLogger
}

// NewEngine assembles an engine from configuration and dependencies.
func NewEngine(cfg *config.Config, deps Deps) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Classifier == nil {
		return nil, fmt.Errorf("engine requires a classifier")
	}
	if deps.Invokers == nil {
		return nil, fmt.Errorf("engine requires an invoker registry")
	}
	if deps.Responder == nil {
		return nil, fmt.Errorf("engine requires a responder")
	}

	logger := deps.Logger
	if logger == nil {
		logger = NopLogger()
	}

	var decomposer *decompose.Decomposer
	if deps.Planner != nil && deps.Selector != nil {
		decomposer = decompose.New(deps.Planner, deps.Selector, decompose.Options{
			StepTimeout: cfg.Executor.DefaultStepTimeout,
			MaxRetries:  cfg.Executor.DefaultMaxRetries,
		})
	}

	return &Engine{
		cfg:        cfg,
		classifier: deps.Classifier,
		memory:     deps.Memory,
		selector:   deps.Selector,
		invokers:   deps.Invokers,
		responder:  deps.Responder,
		scorer:     complexity.NewScorer(cfg.Scoring),
		router:     router.New(deps.Matcher, cfg.Routing),
		flows:      deps.Flows,
		decomposer: decomposer,
		auditor:    deps.Auditor,
		logger:     logger,
	}, nil
}

// Handle routes and executes one request.
func (e *Engine) Handle(ctx context.Context, req models.Request) (*Response, error) {
	started := time.Now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	mem := e.retrieveMemory(ctx, req)
	intent, _, decision := e.route(ctx, req, mem)

	var resp *Response
	var err error
	switch decision.Path {
	case models.PathPredefined:
		resp, err = e.runFlow(ctx, req, intent, mem, decision)
	case models.PathSimple:
		resp, err = e.runSimple(ctx, req, intent, mem, decision)
	case models.PathMedium:
		resp, err = e.runSingleStep(ctx, req, intent, mem, decision)
	case models.PathComplex:
		resp, err = e.runDecomposed(ctx, req, intent, mem, decision)
	default:
		err = fmt.Errorf("unknown execution path %q", decision.Path)
	}
	if err != nil {
		return nil, err
	}

	resp.Metadata.RequestID = req.ID
	resp.Metadata.ExecutionPath = decision.Path
	resp.Metadata.Duration = time.Since(started)
	if resp.Result != nil {
		resp.Metadata.Timings = resp.Result.Timings
	}
	return resp, nil
}

// Route classifies, scores, and routes a request without executing it.
// Used by callers that want to inspect the decision.
func (e *Engine) Route(ctx context.Context, req models.Request) (models.Intent, models.ComplexityScore, models.RoutingDecision) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	mem := e.retrieveMemory(ctx, req)
	return e.route(ctx, req, mem)
}

// route runs the classification, scoring, and routing pipeline.
// Classification failure is not fatal: an unclassifiable request
// scores zero and takes the simple path.
func (e *Engine) route(ctx context.Context, req models.Request, mem models.MemorySnapshot) (models.Intent, models.ComplexityScore, models.RoutingDecision) {
	intent, err := e.classifier.Classify(ctx, req.Text, mem)
	if err != nil {
		e.logger.Log("[engine] request %s: classification failed: %v", req.ID, err)
		intent = models.Intent{}
	}

	score := e.scorer.Score(req.Text, intent, mem)
	decision := e.router.Route(ctx, intent, req.Text, score)
	e.logger.Log("[engine] request %s: path=%s confidence=%.2f score=%.2f (%s)",
		req.ID, decision.Path, decision.Confidence, score.Final, decision.Reasoning)
	return intent, score, decision
}

// retrieveMemory fetches conversation memory, tolerating failures. A
// request without usable memory is still routable.
func (e *Engine) retrieveMemory(ctx context.Context, req models.Request) models.MemorySnapshot {
	if e.memory == nil || req.ConversationID == "" {
		return models.MemorySnapshot{}
	}
	mem, err := e.memory.Retrieve(ctx, req.ConversationID)
	if err != nil {
		e.logger.Log("[engine] request %s: memory retrieval failed: %v", req.ID, err)
		return models.MemorySnapshot{}
	}
	return mem
}

// runFlow instantiates the matched flow's template and executes it.
func (e *Engine) runFlow(ctx context.Context, req models.Request, intent models.Intent, mem models.MemorySnapshot, decision models.RoutingDecision) (*Response, error) {
	def := decision.MatchedFlow
	if def == nil {
		return nil, fmt.Errorf("predefined path without a matched flow")
	}

	p := instantiateFlow(def, req)
	ec := plan.NewExecutionContext(req, intent, mem)
	result := e.executorFor(def.SLATarget.Std()).Execute(ctx, p, ec)

	if e.flows != nil {
		e.flows.RecordExecution(def.FlowID, result.Status == models.PlanStatusCompleted, result.Duration)
	}
	e.recordAudit(p, result, models.PathPredefined)

	return &Response{
		Text:     composeText(p, result),
		Decision: decision,
		Plan:     p,
		Result:   result,
		Metadata: models.ResponseMetadata{FlowID: def.FlowID},
	}, nil
}

// runSimple answers directly with no plan.
func (e *Engine) runSimple(ctx context.Context, req models.Request, intent models.Intent, mem models.MemorySnapshot, decision models.RoutingDecision) (*Response, error) {
	text, err := e.responder.Respond(ctx, req, intent, mem)
	if err != nil {
		return nil, fmt.Errorf("direct response: %w", err)
	}
	return &Response{Text: text, Decision: decision}, nil
}

// runSingleStep executes the request as a one-step plan, which buys the
// medium path the executor's timeout and retry semantics.
func (e *Engine) runSingleStep(ctx context.Context, req models.Request, intent models.Intent, mem models.MemorySnapshot, decision models.RoutingDecision) (*Response, error) {
	step := &models.TaskStep{
		StepID:      "execute",
		Description: req.Text,
		Type:        stepTypeForIntent(intent),
		Mode:        models.ModeSequential,
		Status:      models.StepStatusPending,
		Bindings: map[string]models.ParameterBinding{
			"request": {Source: models.SourceUserInput},
		},
		Critical: true,
	}

	if e.selector != nil {
		sel, err := e.selector.Select(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("select collaborator: %w", err)
		}
		step.Selection = sel
	}

	p := &models.TaskPlan{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		Status:    models.PlanStatusPending,
		Steps:     []*models.TaskStep{step},
		CreatedAt: time.Now(),
	}

	ec := plan.NewExecutionContext(req, intent, mem)
	result := e.executorFor(0).Execute(ctx, p, ec)
	e.recordAudit(p, result, models.PathMedium)

	return &Response{
		Text:     composeText(p, result),
		Decision: decision,
		Plan:     p,
		Result:   result,
	}, nil
}

// runDecomposed breaks the request into a task plan and executes it.
func (e *Engine) runDecomposed(ctx context.Context, req models.Request, intent models.Intent, mem models.MemorySnapshot, decision models.RoutingDecision) (*Response, error) {
	if e.decomposer == nil {
		return nil, fmt.Errorf("complex path requires a planner and selector")
	}

	p, err := e.decomposer.Decompose(ctx, req, intent, mem)
	if err != nil {
		return nil, fmt.Errorf("decompose request: %w", err)
	}
	e.logger.Log("[engine] request %s: decomposed into %d steps", req.ID, len(p.Steps))

	ec := plan.NewExecutionContext(req, intent, mem)
	result := e.executorFor(0).Execute(ctx, p, ec)
	e.recordAudit(p, result, models.PathComplex)

	return &Response{
		Text:     composeText(p, result),
		Decision: decision,
		Plan:     p,
		Result:   result,
	}, nil
}

// executorFor builds a plan executor, optionally overriding the plan
// deadline with a flow's SLA target.
func (e *Engine) executorFor(planTimeout time.Duration) *plan.Executor {
	opts := plan.Options{
		MaxParallel:        e.cfg.Executor.MaxParallel,
		DefaultStepTimeout: e.cfg.Executor.DefaultStepTimeout,
		DefaultMaxRetries:  e.cfg.Executor.DefaultMaxRetries,
		PlanTimeout:        e.cfg.Executor.PlanTimeout,
		Logf:               e.logger.Log,
	}
	if planTimeout > 0 {
		opts.PlanTimeout = planTimeout
	}
	return plan.NewExecutor(e.invokers, nil, opts)
}

func (e *Engine) recordAudit(p *models.TaskPlan, result *models.TaskPlanResult, path models.ExecutionPath) {
	if e.auditor == nil {
		return
	}
	if err := e.auditor.RecordPlan(p, result, path); err != nil {
		e.logger.Log("[engine] audit record for plan %s failed: %v", p.ID, err)
	}
}

// instantiateFlow turns a flow's static template into a fresh plan for
// one request.
func instantiateFlow(def *models.FlowDefinition, req models.Request) *models.TaskPlan {
	p := &models.TaskPlan{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		FlowID:    def.FlowID,
		Status:    models.PlanStatusPending,
		CreatedAt: time.Now(),
	}
	for _, tmpl := range def.Template.Steps {
		p.Steps = append(p.Steps, &models.TaskStep{
			StepID:       tmpl.StepID,
			Description:  tmpl.StepID,
			Type:         tmpl.Type,
			Selection:    tmpl.Selection,
			Bindings:     tmpl.Bindings,
			Dependencies: append([]string(nil), tmpl.DependsOn...),
			Mode:         tmpl.Mode,
			Condition:    tmpl.Condition,
			Status:       models.StepStatusPending,
			Timeout:      tmpl.Timeout.Std(),
			MaxRetries:   tmpl.MaxRetries,
			Critical:     tmpl.Critical,
			RunOnFailure: tmpl.RunOnFailure,
		})
	}
	return p
}

// stepTypeForIntent picks the step type for the medium path's single
// step.
func stepTypeForIntent(intent models.Intent) models.StepType {
	switch intent.Type {
	case models.IntentTransactional:
		return models.StepTypeToolCall
	case models.IntentAnalytical:
		return models.StepTypeAgentCall
	default:
		return models.StepTypeAgentCall
	}
}

// composeText derives the user-facing answer from a plan outcome: the
// text of the last completed step that produced any, falling back to
// the aggregate reasoning.
func composeText(p *models.TaskPlan, result *models.TaskPlanResult) string {
	for i := len(p.Steps) - 1; i >= 0; i-- {
		step := p.Steps[i]
		if step.Status != models.StepStatusCompleted || step.Result == nil {
			continue
		}
		if step.Result.Text != "" {
			return step.Result.Text
		}
	}
	return result.Reasoning
}
