// Package agent runs the bounded PLANNING → ACTING → OBSERVING loop that
// carries out one task under one behavior profile.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rea/internal/domain"
	"rea/internal/metrics"
	"rea/internal/policy"
	"rea/internal/provider"
	"rea/internal/ratelimit"
	"rea/internal/tool"
)

const (
	defaultMaxSteps     = 20
	defaultLLMMaxTokens = 4096
)

var tracer = otel.Tracer("rea/agent")

// PricingFunc returns the dollar cost of usage on model.
type PricingFunc func(model string, u domain.Usage) float64

// StepObserver is told about every step as it is appended.
type StepObserver func(runID string, step domain.AgentStep)

// LoopConfig holds all dependencies and tuning parameters for the agent loop.
type LoopConfig struct {
	Provider    domain.Provider
	Tools       *tool.Registry
	Gate        domain.HumanGate // answers request_approval
	Auditor     *policy.Auditor  // optional
	Limiter     *ratelimit.Limiter
	Pricing     PricingFunc // default provider.Cost
	OnStep      StepObserver
	Model       string
	MaxSteps    int
	MaxTokens   int
	Temperature float64
	Logger      *slog.Logger
}

// Loop is safe for concurrent use; each Run owns its own state.
type Loop struct {
	provider    domain.Provider
	tools       *tool.Registry
	approval    *tool.ApprovalTool
	auditor     *policy.Auditor
	limiter     *ratelimit.Limiter
	pricing     PricingFunc
	onStep      StepObserver
	model       string
	maxSteps    int
	maxTokens   int
	temperature float64
	logger      *slog.Logger
	now         func() time.Time
}

func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Provider == nil {
		return nil, errors.New("agent: provider is required")
	}
	if cfg.Tools == nil {
		cfg.Tools = tool.NewRegistry(cfg.Logger)
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultLLMMaxTokens
	}
	if cfg.Pricing == nil {
		cfg.Pricing = provider.Cost
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		provider:    cfg.Provider,
		tools:       cfg.Tools,
		approval:    tool.NewApprovalTool(cfg.Gate),
		auditor:     cfg.Auditor,
		limiter:     cfg.Limiter,
		pricing:     cfg.Pricing,
		onStep:      cfg.OnStep,
		model:       cfg.Model,
		maxSteps:    cfg.MaxSteps,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
		now:         time.Now,
	}, nil
}

// MaxSteps is the step budget of every run.
func (l *Loop) MaxSteps() int { return l.maxSteps }

// NewRecord starts a run record for task with a fresh time-ordered id.
func (l *Loop) NewRecord(task domain.Task) *domain.RunRecord {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &domain.RunRecord{
		ID:        id.String(),
		Task:      task.Text,
		Status:    domain.RunRunning,
		StartedAt: l.now(),
	}
}

// Run executes task under profile and returns the finished record.
//
// A final answer ends the run as done. Running out of steps ends it as
// budget_exhausted with a nil error. Model failures, human gate failures and
// cancellation end it early; the partial record is returned with the error.
func (l *Loop) Run(ctx context.Context, task domain.Task, profile domain.Profile) (*domain.RunRecord, error) {
	rec := l.NewRecord(task)
	return rec, l.Execute(ctx, rec, profile)
}

// Execute runs the loop on a record created by NewRecord.
func (l *Loop) Execute(ctx context.Context, rec *domain.RunRecord, profile domain.Profile) error {
	ctx, span := tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("rea.run_id", rec.ID),
		attribute.String("rea.role", string(profile.Role)),
	))
	defer span.End()

	rec.Role = profile.Role
	r := &run{
		loop:    l,
		rec:     rec,
		profile: profile,
		filter:  ProfileFilter(profile),
		policy:  l.auditor.Track(rec.ID),
		logger:  l.logger.With("run_id", rec.ID, "role", profile.Role),
	}
	r.messages = []domain.Message{
		{Role: "system", Content: profile.Instructions},
		{Role: "user", Content: rec.Task},
	}
	r.defs = r.definitions()

	err := r.drive(ctx)

	rec.FinishedAt = l.now()
	rec.PolicyWarnings = r.policy.Warnings()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.String("rea.status", string(rec.Status)),
		attribute.Int("rea.steps", len(rec.Steps)),
		attribute.Int("rea.tokens", rec.Cost.TotalTokens),
	)
	metrics.RunsTotal(string(rec.Status)).Inc()
	metrics.RunDuration.Observe(rec.Duration().Seconds())
	r.logger.Info("run finished",
		"status", rec.Status,
		"steps", len(rec.Steps),
		"tokens", rec.Cost.TotalTokens,
		"cost_usd", rec.Cost.TotalCost,
		"duration", rec.Duration(),
	)
	return err
}

// run is the per-run state of the loop.
type run struct {
	loop     *Loop
	rec      *domain.RunRecord
	profile  domain.Profile
	filter   *ToolFilter
	policy   *policy.Tracker
	logger   *slog.Logger
	defs     []domain.ToolDefinition
	messages []domain.Message
	lastText string
}

// plan is the outcome of one PLANNING call.
type plan struct {
	text  string
	call  *domain.ToolCall
	usage domain.Usage
}

func (r *run) drive(ctx context.Context) error {
	for i := 0; i < r.loop.maxSteps; i++ {
		if err := ctx.Err(); err != nil {
			return r.cancel(err)
		}

		// PLANNING
		p, err := r.plan(ctx, i)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return r.cancel(ctxErr)
			}
			return r.fail(err)
		}
		if p.call == nil {
			if w := r.policy.Done(ctx, r.profile.RequireApprovalBeforeDone); w != "" {
				metrics.PolicyWarnings.Inc()
			}
			r.rec.FinalAnswer = p.text
			r.rec.Status = domain.RunDone
			return nil
		}
		if err := ctx.Err(); err != nil {
			return r.cancel(err)
		}

		// ACTING + OBSERVING
		step := domain.AgentStep{
			Index:            i + 1,
			Reasoning:        p.text,
			ToolName:         p.call.Name,
			ToolCallID:       p.call.ID,
			Arguments:        p.call.Arguments,
			PromptTokens:     p.usage.PromptTokens,
			CompletionTokens: p.usage.CompletionTokens,
			StartedAt:        r.loop.now(),
		}
		err = r.act(ctx, p.call, &step)
		step.Duration = r.loop.now().Sub(step.StartedAt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return r.cancel(ctxErr)
			}
			return r.fail(err)
		}
		r.observe(step)
	}

	r.rec.Status = domain.RunBudgetExhausted
	r.rec.ErrorKind = domain.KindStepBudgetExhausted
	r.rec.Error = domain.ErrStepBudgetExhausted.Error()
	r.rec.FinalAnswer = r.lastText
	r.logger.Warn("step budget exhausted", "max_steps", r.loop.maxSteps)
	return nil
}

// plan asks the model for the next action.
func (r *run) plan(ctx context.Context, i int) (plan, error) {
	l := r.loop
	ctx, span := tracer.Start(ctx, "agent.plan", trace.WithAttributes(attribute.Int("rea.step", i+1)))
	defer span.End()

	if err := l.limiter.Wait(ctx); err != nil {
		return plan{}, err
	}

	start := time.Now()
	metrics.LLMRequestsTotal.Inc()
	resp, err := l.provider.Chat(ctx, domain.ChatRequest{
		Messages:    r.messages,
		Tools:       r.defs,
		Model:       l.model,
		MaxTokens:   l.maxTokens,
		Temperature: &l.temperature,
	})
	metrics.LLMLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMErrorsTotal.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return plan{}, &domain.ModelError{Err: err}
	}

	model := resp.Model
	if model == "" {
		model = l.model
	}
	if r.rec.Model == "" {
		r.rec.Model = model
	}
	r.rec.Cost.AddUsage(resp.Usage, l.pricing(model, resp.Usage))
	metrics.PromptTokens.Add(int64(resp.Usage.PromptTokens))
	metrics.CompletionTokens.Add(int64(resp.Usage.CompletionTokens))
	span.SetAttributes(
		attribute.String("rea.model", model),
		attribute.Int("rea.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("rea.completion_tokens", resp.Usage.CompletionTokens),
	)

	p := plan{text: stripRolePrefix(strings.TrimSpace(resp.Content)), usage: resp.Usage}
	switch {
	case resp.HasToolCalls():
		if len(resp.ToolCalls) > 1 {
			r.logger.Debug("keeping first of several tool calls", "step", i+1, "count", len(resp.ToolCalls))
		}
		tc := resp.ToolCalls[0]
		p.call = &tc
	default:
		if tc, ok := extractToolCallFromContent(resp.Content); ok {
			r.logger.Debug("extracted tool call from content", "step", i+1, "tool", tc.Name)
			p.call = &tc
			p.text = ""
		}
	}
	if p.text != "" {
		r.lastText = p.text
	}
	return p, nil
}

// act executes call and fills in the step's observation. Only fatal
// conditions are returned as errors; everything else is an observation.
func (r *run) act(ctx context.Context, call *domain.ToolCall, step *domain.AgentStep) error {
	l := r.loop
	name := call.Name

	t := r.lookup(name)
	if t == nil {
		metrics.UnknownTools.Inc()
		ute := &domain.UnknownToolError{Name: name, Available: r.available()}
		step.Kind = domain.ObservationUnknownTool
		step.Observation = ute.Error()
		r.logger.Warn("unknown tool requested", "step", step.Index, "tool", name)
		return nil
	}

	args, err := decodeArguments(call)
	if err == nil {
		err = tool.ValidateArgs(name, t.Parameters(), args)
	}
	if err != nil {
		metrics.ParseErrors.Inc()
		step.Kind = domain.ObservationParseError
		step.Observation = err.Error()
		r.logger.Warn("malformed tool call", "step", step.Index, "tool", name, "err", err)
		return nil
	}
	step.Arguments = args

	if w := r.policy.Observe(ctx, name); w != "" {
		metrics.PolicyWarnings.Inc()
	}

	ctx, span := tracer.Start(ctx, "agent.tool", trace.WithAttributes(
		attribute.String("rea.tool", name),
		attribute.Int("rea.step", step.Index),
	))
	defer span.End()

	start := time.Now()
	metrics.ToolExecutions.Inc()
	if name == tool.ApprovalToolName {
		metrics.ApprovalRequests.Inc()
		resp, err := l.approval.Execute(ctx, args)
		metrics.ToolLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		step.Kind = domain.ObservationHumanResponse
		step.Observation = resp
		return nil
	}

	out, err := l.tools.Execute(ctx, name, args)
	metrics.ToolLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		span.RecordError(err)
		var ute *domain.UnknownToolError
		if errors.As(err, &ute) {
			metrics.UnknownTools.Inc()
			step.Kind = domain.ObservationUnknownTool
			step.Observation = (&domain.UnknownToolError{Name: name, Available: r.available()}).Error()
			return nil
		}
		metrics.ToolErrors.Inc()
		step.Kind = domain.ObservationToolError
		step.Observation = toolErrorText(err)
		r.logger.Info("tool returned error", "step", step.Index, "tool", name, "err", err)
		return nil
	}
	step.Kind = domain.ObservationResult
	step.Observation = out
	r.logger.Debug("tool completed", "step", step.Index, "tool", name, "result_len", len(out))
	return nil
}

// observe appends the step to the record and to the conversation.
func (r *run) observe(step domain.AgentStep) {
	r.rec.Steps = append(r.rec.Steps, step)
	metrics.StepsTotal.Inc()

	args := step.Arguments
	if args == nil {
		args = map[string]any{}
	}
	r.messages = append(r.messages,
		domain.Message{
			Role:      "assistant",
			Content:   step.Reasoning,
			ToolCalls: []domain.ToolCall{{ID: step.ToolCallID, Name: step.ToolName, Arguments: args}},
		},
		domain.Message{
			Role:       "tool",
			Content:    step.Observation,
			ToolCallID: step.ToolCallID,
			ToolName:   step.ToolName,
		},
	)
	r.logger.Info("step completed", "step", step.Index, "tool", step.ToolName, "kind", step.Kind)

	if r.loop.onStep != nil {
		r.loop.onStep(r.rec.ID, step)
	}
}

func (r *run) cancel(err error) error {
	r.rec.Status = domain.RunCancelled
	r.rec.ErrorKind = domain.KindCancelled
	r.rec.Error = err.Error()
	r.logger.Info("run cancelled", "steps", len(r.rec.Steps))
	return err
}

func (r *run) fail(err error) error {
	r.rec.Status = domain.RunFailed
	r.rec.ErrorKind = domain.ErrorKind(err)
	r.rec.Error = err.Error()
	r.logger.Error("run failed", "steps", len(r.rec.Steps), "err", err)
	return err
}

// definitions is the run's registry view plus request_approval.
func (r *run) definitions() []domain.ToolDefinition {
	defs := r.filter.FilterDefinitions(r.loop.tools.Definitions())
	out := make([]domain.ToolDefinition, 0, len(defs)+1)
	out = append(out, domain.ToolDefinition{
		Name:        r.loop.approval.Name(),
		Description: r.loop.approval.Description(),
		Parameters:  r.loop.approval.Parameters(),
	})
	for _, d := range defs {
		if d.Name != tool.ApprovalToolName {
			out = append(out, d)
		}
	}
	return out
}

// lookup resolves name within the run's registry view.
func (r *run) lookup(name string) domain.Tool {
	if name == tool.ApprovalToolName {
		return r.loop.approval
	}
	if !r.filter.IsAllowed(name) {
		return nil
	}
	return r.loop.tools.Get(name)
}

func (r *run) available() []string {
	names := make([]string, 0, len(r.defs))
	for _, d := range r.defs {
		names = append(names, d.Name)
	}
	return names
}

// decodeArguments returns the call's arguments as a JSON object. A call
// without arguments gets an empty object; anything that is not an object is
// rejected.
func decodeArguments(call *domain.ToolCall) (map[string]any, error) {
	if call.Arguments != nil {
		return call.Arguments, nil
	}
	raw := strings.TrimSpace(call.RawArguments)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: arguments must be a JSON object: %v", call.Name, err)
	}
	if args == nil {
		return nil, fmt.Errorf("invalid arguments for %s: arguments must be a JSON object", call.Name)
	}
	return args, nil
}

// toolErrorText is the observation for a failed tool: the tool's own message.
func toolErrorText(err error) string {
	var tie *domain.ToolInvocationError
	if errors.As(err, &tie) && tie.Err != nil {
		return tie.Err.Error()
	}
	return err.Error()
}
