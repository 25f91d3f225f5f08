package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

// ErrPlanDeadline indicates the plan's overall deadline elapsed before
// execution finished.
var ErrPlanDeadline = errors.New("plan deadline exceeded")

// ErrNonRetryable wraps step failures that must not be retried, such as
// validation rejections. Parameter resolution failures are inherently
// non-retryable and never enter the retry loop.
var ErrNonRetryable = errors.New("non-retryable failure")

// StepInvoker executes a single step with resolved parameters. It must
// honor ctx cancellation and be safe to call again on retry.
type StepInvoker interface {
	Invoke(ctx context.Context, step *models.TaskStep, params map[string]any) (*models.StepResult, error)
}

// Options configures an Executor.
type Options struct {
	// MaxParallel bounds concurrent step execution. Minimum 1.
	MaxParallel int
	// DefaultStepTimeout applies to steps that declare none.
	DefaultStepTimeout time.Duration
	// DefaultMaxRetries applies to steps that declare none.
	DefaultMaxRetries int
	// PlanTimeout bounds the whole plan. Zero derives a deadline from
	// the sum of step timeouts plus scheduling overhead.
	PlanTimeout time.Duration
	// Logf receives debug trace lines. Nil disables tracing.
	Logf func(format string, args ...any)
}

// Executor schedules a task plan: it walks the DAG, runs ready steps
// respecting execution mode and dependency completion, resolves
// parameter bindings, retries per policy, and aggregates the outcome.
//
// One Executor may run many plans; all per-plan state lives in the
// run's local variables and the plan itself.
type Executor struct {
	invoker  StepInvoker
	resolver *Resolver
	opts     Options
}

// NewExecutor creates an executor.
func NewExecutor(invoker StepInvoker, resolver *Resolver, opts Options) *Executor {
	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}
	if opts.DefaultStepTimeout <= 0 {
		opts.DefaultStepTimeout = 30 * time.Second
	}
	if resolver == nil {
		resolver = NewResolver()
	}
	return &Executor{invoker: invoker, resolver: resolver, opts: opts}
}

// schedulingOverhead is the per-step allowance added when deriving a
// plan deadline from step timeouts.
const schedulingOverhead = 500 * time.Millisecond

// stepOutcome is the isolated result slot a step execution writes into.
// The scheduler applies outcomes to the plan and the execution context
// after each batch, keeping a single-writer discipline on shared state.
type stepOutcome struct {
	step     *models.TaskStep
	result   *models.StepResult
	err      error
	attempts int
}

// Execute runs the plan to a terminal state and aggregates the result.
// Structural defects (cycle, dangling reference) abort the plan before
// any step runs and are reported distinctly from step failures.
func (e *Executor) Execute(ctx context.Context, p *models.TaskPlan, ec *ExecutionContext) *models.TaskPlanResult {
	started := time.Now()

	if err := Finalize(p); err != nil {
		p.Status = models.PlanStatusFailed
		now := time.Now()
		p.CompletedAt = &now
		return &models.TaskPlanResult{
			PlanID:          p.ID,
			Status:          models.PlanStatusFailed,
			StructuralError: err.Error(),
			Reasoning:       fmt.Sprintf("plan rejected before execution: %v", err),
			Duration:        time.Since(started),
		}
	}

	deadline := e.opts.PlanTimeout
	if deadline <= 0 {
		deadline = e.derivedDeadline(p)
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	p.Status = models.PlanStatusRunning
	e.logf("[executor] plan %s started: %d steps, deadline %s", p.ID, len(p.Steps), deadline)

	deadlineHit := e.runLoop(ctx, p, ec)

	now := time.Now()
	p.CompletedAt = &now
	res := e.aggregate(p, ec, deadlineHit)
	res.Duration = time.Since(started)
	p.Status = res.Status
	e.logf("[executor] plan %s finished: %s (%s)", p.ID, res.Status, res.Duration)
	return res
}

// runLoop drives scheduling rounds until no step remains pending or
// running. Returns true if the plan deadline elapsed.
func (e *Executor) runLoop(ctx context.Context, p *models.TaskPlan, ec *ExecutionContext) bool {
	for {
		if ctx.Err() != nil {
			e.failInFlight(p)
			return true
		}

		e.propagateSkips(p)

		parallel, sequential := e.readySets(p, ec)
		if len(parallel) == 0 && len(sequential) == 0 {
			if anyPending(p) && !anyRunning(p) {
				// Remaining pending steps can never become ready; the
				// skip propagation above will resolve them next round,
				// or they are unreachable and get skipped here.
				if !e.skipUnreachable(p) {
					return false
				}
				continue
			}
			return false
		}

		if len(parallel) > 0 {
			if e.runParallelBatch(ctx, p, ec, parallel) {
				e.failInFlight(p)
				return true
			}
		}

		for _, step := range sequential {
			if ctx.Err() != nil {
				e.failInFlight(p)
				return true
			}
			outcome := e.runStep(ctx, step, ec)
			e.apply(p, ec, outcome)
		}
	}
}

// readySets computes the steps eligible to start this round and
// partitions them by execution mode. A step is ready when every
// dependency is terminal and either all dependencies completed or the
// step is a compensation step with at least one failed dependency; a
// compensation step whose dependencies all completed is skipped, never
// run. CONDITIONAL steps have their guard evaluated here, at ready
// time; a false guard skips the step.
func (e *Executor) readySets(p *models.TaskPlan, ec *ExecutionContext) (parallel, sequential []*models.TaskStep) {
	for _, step := range p.Steps {
		if step.Status != models.StepStatusPending {
			continue
		}
		if !e.depsSatisfied(p, step) {
			continue
		}

		if step.RunOnFailure && len(step.Dependencies) > 0 && !anyDepFailed(p, step) {
			e.markSkipped(step, "compensation not needed: all dependencies completed")
			e.logf("[executor] step %s skipped: compensation not needed", step.StepID)
			continue
		}

		if step.Mode == models.ModeConditional {
			if !evaluateGuard(step.Condition, ec) {
				e.markSkipped(step, fmt.Sprintf("guard %q evaluated false", step.Condition))
				e.logf("[executor] step %s skipped: guard false", step.StepID)
				continue
			}
		}

		if step.Mode == models.ModeParallel {
			parallel = append(parallel, step)
		} else {
			sequential = append(sequential, step)
		}
	}
	return parallel, sequential
}

// depsSatisfied reports whether a step may start: all dependencies
// terminal, and completed unless the step runs on failure.
func (e *Executor) depsSatisfied(p *models.TaskPlan, step *models.TaskStep) bool {
	for _, dep := range step.Dependencies {
		d := p.Step(dep)
		if d == nil || !d.Status.Terminal() {
			return false
		}
		if d.Status != models.StepStatusCompleted && !step.RunOnFailure {
			return false
		}
	}
	return true
}

// anyDepFailed reports whether at least one dependency ended FAILED or
// SKIPPED.
func anyDepFailed(p *models.TaskPlan, step *models.TaskStep) bool {
	for _, dep := range step.Dependencies {
		d := p.Step(dep)
		if d != nil && (d.Status == models.StepStatusFailed || d.Status == models.StepStatusSkipped) {
			return true
		}
	}
	return false
}

// propagateSkips cascades SKIPPED through dependents of failed or
// skipped steps, transitively, sparing compensation steps.
func (e *Executor) propagateSkips(p *models.TaskPlan) {
	for changed := true; changed; {
		changed = false
		for _, step := range p.Steps {
			if step.Status != models.StepStatusPending || step.RunOnFailure {
				continue
			}
			for _, dep := range step.Dependencies {
				d := p.Step(dep)
				if d == nil {
					continue
				}
				if d.Status == models.StepStatusFailed || d.Status == models.StepStatusSkipped {
					e.markSkipped(step, fmt.Sprintf("dependency %s %s", dep, strings.ToLower(string(d.Status))))
					e.logf("[executor] step %s skipped: dependency %s %s", step.StepID, dep, d.Status)
					changed = true
					break
				}
			}
		}
	}
}

// skipUnreachable resolves pending steps that can never start (their
// dependency subtree stalled without reaching a terminal state). This
// is a safety net; a validated DAG should not produce such steps.
func (e *Executor) skipUnreachable(p *models.TaskPlan) bool {
	any := false
	for _, step := range p.Steps {
		if step.Status == models.StepStatusPending {
			e.markSkipped(step, "unreachable: dependencies never reached a terminal state")
			any = true
		}
	}
	return any
}

// runParallelBatch runs all parallel-ready steps concurrently, bounded
// by MaxParallel, and applies their outcomes after the batch completes.
// Returns true if the plan deadline elapsed mid-batch.
func (e *Executor) runParallelBatch(ctx context.Context, p *models.TaskPlan, ec *ExecutionContext, batch []*models.TaskStep) bool {
	e.logf("[executor] running parallel batch of %d steps", len(batch))

	// Each step writes only its own outcome slot; the scheduler reads
	// them after Wait, so no locking is needed.
	outcomes := make([]*stepOutcome, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxParallel)
	for i, step := range batch {
		g.Go(func() error {
			outcomes[i] = e.runStep(gctx, step, ec)
			// Step failures do not cancel siblings; only the plan
			// deadline does.
			return nil
		})
	}
	_ = g.Wait()

	for _, outcome := range outcomes {
		if outcome != nil {
			e.apply(p, ec, outcome)
		}
	}
	return ctx.Err() != nil
}

// runStep executes one step through its retry state machine:
// PENDING -> RUNNING -> {COMPLETED | RETRY_PENDING -> RUNNING | FAILED}.
// It writes only into the step's own fields and its outcome slot.
func (e *Executor) runStep(ctx context.Context, step *models.TaskStep, ec *ExecutionContext) *stepOutcome {
	now := time.Now()
	step.Status = models.StepStatusRunning
	step.StartedAt = &now

	outcome := &stepOutcome{step: step}

	params, err := e.resolver.Resolve(step.Bindings, ec)
	if err != nil {
		// Resolution failures are deterministic; retrying cannot help.
		outcome.err = fmt.Errorf("%w: %v", ErrNonRetryable, err)
		outcome.attempts = 0
		return outcome
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = e.opts.DefaultStepTimeout
	}
	maxRetries := effectiveRetries(step.MaxRetries, e.opts.DefaultMaxRetries)

	var lastErr error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		attemptStart := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := e.invoker.Invoke(attemptCtx, step, params)
		cancel()

		record := models.StepAttempt{
			Attempt:   attempt,
			StartedAt: attemptStart,
			Duration:  time.Since(attemptStart),
		}
		if err != nil {
			record.Error = err.Error()
		}
		step.RecordAttempt(record)
		outcome.attempts = attempt

		if err == nil {
			outcome.result = result
			return outcome
		}
		lastErr = err
		e.logf("[executor] step %s attempt %d failed: %v", step.StepID, attempt, err)

		if errors.Is(err, ErrNonRetryable) {
			break
		}
		if ctx.Err() != nil {
			// The plan deadline elapsed; stop retrying.
			break
		}
	}

	outcome.err = lastErr
	return outcome
}

// apply transitions a step to its terminal state and records its result
// in the execution context. Called only from the scheduler goroutine.
func (e *Executor) apply(p *models.TaskPlan, ec *ExecutionContext, outcome *stepOutcome) {
	step := outcome.step
	now := time.Now()
	step.CompletedAt = &now

	if outcome.err != nil {
		step.Status = models.StepStatusFailed
		step.Error = outcome.err.Error()
		e.logf("[executor] step %s FAILED after %d attempts: %v", step.StepID, outcome.attempts, outcome.err)
		return
	}

	step.Status = models.StepStatusCompleted
	step.Result = outcome.result
	ec.RecordResult(step.StepID, outcome.result)
	e.logf("[executor] step %s completed", step.StepID)
}

// failInFlight marks steps still running when the deadline elapsed.
func (e *Executor) failInFlight(p *models.TaskPlan) {
	now := time.Now()
	for _, step := range p.Steps {
		switch step.Status {
		case models.StepStatusRunning:
			step.Status = models.StepStatusFailed
			step.Error = ErrPlanDeadline.Error()
			step.CompletedAt = &now
		case models.StepStatusPending:
			e.markSkipped(step, ErrPlanDeadline.Error())
		}
	}
}

func (e *Executor) markSkipped(step *models.TaskStep, reason string) {
	now := time.Now()
	step.Status = models.StepStatusSkipped
	step.Error = reason
	step.CompletedAt = &now
}

// derivedDeadline sums step timeouts plus scheduling overhead.
func (e *Executor) derivedDeadline(p *models.TaskPlan) time.Duration {
	total := time.Duration(0)
	for _, step := range p.Steps {
		t := step.Timeout
		if t <= 0 {
			t = e.opts.DefaultStepTimeout
		}
		retries := effectiveRetries(step.MaxRetries, e.opts.DefaultMaxRetries)
		total += t*time.Duration(retries+1) + schedulingOverhead
	}
	return total
}

// aggregate computes the overall plan status and result.
func (e *Executor) aggregate(p *models.TaskPlan, ec *ExecutionContext, deadlineHit bool) *models.TaskPlanResult {
	res := &models.TaskPlanResult{
		PlanID:  p.ID,
		Results: ec.Results(),
	}

	completed, failed, skipped := 0, 0, 0
	criticalFailed := false
	for _, step := range p.Steps {
		timing := models.StepTiming{StepID: step.StepID, Status: step.Status}
		if step.StartedAt != nil {
			timing.StartedAt = *step.StartedAt
			if step.CompletedAt != nil {
				timing.Duration = step.CompletedAt.Sub(*step.StartedAt)
			}
		}
		res.Timings = append(res.Timings, timing)

		switch step.Status {
		case models.StepStatusCompleted:
			completed++
		case models.StepStatusFailed:
			failed++
			res.StepErrors = append(res.StepErrors, models.StepError{
				StepID:   step.StepID,
				Message:  step.Error,
				Attempts: len(step.History),
			})
			if step.Critical {
				criticalFailed = true
			}
		case models.StepStatusSkipped:
			if step.RunOnFailure && len(step.Dependencies) > 0 && !anyDepFailed(p, step) {
				// Unneeded compensation; not a failure signal.
				continue
			}
			skipped++
			if step.Critical {
				criticalFailed = true
			}
		}
	}

	switch {
	case deadlineHit:
		res.Status = models.PlanStatusFailed
		res.Reasoning = fmt.Sprintf("%s: %d of %d steps completed before cancellation", ErrPlanDeadline, completed, len(p.Steps))
	case failed == 0 && skipped == 0:
		res.Status = models.PlanStatusCompleted
		res.Reasoning = fmt.Sprintf("all %d steps completed", completed)
	case criticalFailed:
		res.Status = models.PlanStatusFailed
		res.Reasoning = fmt.Sprintf("critical step did not complete (%d completed, %d failed, %d skipped)", completed, failed, skipped)
	case completed > 0:
		res.Status = models.PlanStatusPartiallyFailed
		res.Reasoning = fmt.Sprintf("%d steps completed, %d failed, %d skipped", completed, failed, skipped)
	default:
		res.Status = models.PlanStatusFailed
		res.Reasoning = fmt.Sprintf("no steps completed (%d failed, %d skipped)", failed, skipped)
	}

	return res
}

// evaluateGuard resolves a CONDITIONAL step's guard reference against a
// prior step's recorded result and interprets the value as a boolean.
// An empty condition passes; a reference into a step that never
// completed fails.
func evaluateGuard(condition string, ec *ExecutionContext) bool {
	if condition == "" {
		return true
	}
	segments := strings.Split(condition, ".")
	res := ec.Result(segments[0])
	if res == nil {
		return false
	}
	rest := segments[1:]
	if len(rest) > 0 && (rest[0] == "result" || rest[0] == "output") {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		// Bare step reference: the step completed.
		return true
	}
	value, found, err := navigate(res.Output, rest)
	if err != nil || !found {
		return false
	}
	return truthy(value)
}

// truthy interprets a guard value as a boolean.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && !strings.EqualFold(t, "false")
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case nil:
		return false
	default:
		return true
	}
}

func anyPending(p *models.TaskPlan) bool {
	for _, s := range p.Steps {
		if s.Status == models.StepStatusPending {
			return true
		}
	}
	return false
}

func anyRunning(p *models.TaskPlan) bool {
	for _, s := range p.Steps {
		if s.Status == models.StepStatusRunning {
			return true
		}
	}
	return false
}

// effectiveRetries interprets a step's retry declaration: zero means
// the configured default, negative disables retries.
func effectiveRetries(declared, fallback int) int {
	if declared == 0 {
		return fallback
	}
	if declared < 0 {
		return 0
	}
	return declared
}

func (e *Executor) logf(format string, args ...any) {
	if e.opts.Logf != nil {
		e.opts.Logf(format, args...)
	}
}
