package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rea/internal/config"
	"rea/internal/domain"
	"rea/internal/policy"
	"rea/internal/tool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedProvider replays one reply per Chat call. When the script runs out
// the last reply is repeated.
type scriptedProvider struct {
	mu       sync.Mutex
	replies  []reply
	requests []domain.ChatRequest
}

type reply struct {
	resp *domain.ChatResponse
	err  error
	hook func(ctx context.Context)
}

func (p *scriptedProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	p.mu.Lock()
	i := len(p.requests)
	req.Messages = append([]domain.Message(nil), req.Messages...)
	p.requests = append(p.requests, req)
	if i >= len(p.replies) {
		i = len(p.replies) - 1
	}
	r := p.replies[i]
	p.mu.Unlock()

	if r.hook != nil {
		r.hook(ctx)
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.resp, nil
}

func (p *scriptedProvider) Name() string                    { return "scripted" }
func (p *scriptedProvider) Models() []string                { return []string{"gpt-4o"} }
func (p *scriptedProvider) SupportsToolCalling() bool       { return true }
func (p *scriptedProvider) Healthy(_ context.Context) error { return nil }

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func answer(text string) reply {
	return reply{resp: &domain.ChatResponse{
		Content: text,
		Model:   "gpt-4o",
		Usage:   domain.Usage{PromptTokens: 100, CompletionTokens: 10, TotalTokens: 110},
	}}
}

func callTool(id, name string, args map[string]any) reply {
	return reply{resp: &domain.ChatResponse{
		ToolCalls: []domain.ToolCall{{ID: id, Name: name, Arguments: args}},
		Model:     "gpt-4o",
		Usage:     domain.Usage{PromptTokens: 100, CompletionTokens: 10, TotalTokens: 110},
	}}
}

// fakeTool returns a fixed result or error and counts invocations.
type fakeTool struct {
	name   string
	params map[string]any
	result string
	err    error

	mu    sync.Mutex
	calls []map[string]any
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake " + f.name }
func (f *fakeTool) Parameters() map[string]any {
	if f.params != nil {
		return f.params
	}
	return tool.ToolParameters(map[string]tool.Param{
		"team_name": {Type: "string", Description: "Team"},
	}, nil)
}

func (f *fakeTool) Execute(_ context.Context, args map[string]any) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()
	return f.result, f.err
}

type gateFunc func(ctx context.Context, details string) (string, error)

func (g gateFunc) Request(ctx context.Context, details string) (string, error) {
	return g(ctx, details)
}

func scrumProfile() domain.Profile {
	return domain.Profile{
		Role:         domain.RoleScrumLead,
		Name:         "Scrum Lead",
		Instructions: "You are the scrum lead.",
	}
}

func newTestLoop(t *testing.T, p domain.Provider, maxSteps int, gate domain.HumanGate, tools ...domain.Tool) *Loop {
	t.Helper()
	reg := tool.NewRegistry(testLogger())
	reg.Register(tools...)
	l, err := NewLoop(LoopConfig{
		Provider: p,
		Tools:    reg,
		Gate:     gate,
		Model:    "gpt-4o",
		MaxSteps: maxSteps,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	return l
}

func TestNewLoop_RequiresProvider(t *testing.T) {
	_, err := NewLoop(LoopConfig{})
	assert.Error(t, err)
}

func TestNewLoop_DefaultBudget(t *testing.T) {
	l, err := NewLoop(LoopConfig{Provider: &scriptedProvider{replies: []reply{answer("ok")}}})
	require.NoError(t, err)
	assert.Equal(t, 20, l.MaxSteps())
}

func TestLoop_ImmediateFinalAnswer(t *testing.T) {
	p := &scriptedProvider{replies: []reply{answer("Assistant: The sprint is on track.")}}
	l := newTestLoop(t, p, 5, nil)

	rec, err := l.Run(context.Background(), domain.Task{Text: "How is the sprint going?"}, scrumProfile())
	require.NoError(t, err)

	assert.Equal(t, domain.RunDone, rec.Status)
	assert.Equal(t, "The sprint is on track.", rec.FinalAnswer)
	assert.Empty(t, rec.Steps)
	assert.Equal(t, domain.RoleScrumLead, rec.Role)
	assert.Equal(t, "gpt-4o", rec.Model)
	assert.Equal(t, 110, rec.Cost.TotalTokens)
	assert.Greater(t, rec.Cost.TotalCost, 0.0)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.FinishedAt.IsZero())

	require.Len(t, p.requests, 1)
	msgs := p.requests[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "You are the scrum lead.", msgs[0].Content)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "How is the sprint going?", msgs[1].Content)
}

func TestLoop_ToolResultFeedsNextPlan(t *testing.T) {
	iterations := &fakeTool{name: "work_list_team_iterations", result: "Sprint 1\nSprint 2"}
	p := &scriptedProvider{replies: []reply{
		callTool("call_1", "work_list_team_iterations", map[string]any{"team_name": "Alpha"}),
		answer("Sprint 2 is current."),
	}}
	l := newTestLoop(t, p, 5, nil, iterations)

	rec, err := l.Run(context.Background(), domain.Task{Text: "list sprints"}, scrumProfile())
	require.NoError(t, err)

	require.Len(t, rec.Steps, 1)
	step := rec.Steps[0]
	assert.Equal(t, 1, step.Index)
	assert.Equal(t, "work_list_team_iterations", step.ToolName)
	assert.Equal(t, domain.ObservationResult, step.Kind)
	assert.Equal(t, "Sprint 1\nSprint 2", step.Observation)
	assert.Equal(t, map[string]any{"team_name": "Alpha"}, step.Arguments)
	assert.Equal(t, 220, rec.Cost.TotalTokens)

	require.Len(t, p.requests, 2)
	msgs := p.requests[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "assistant", msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[2].ToolCalls[0].ID)
	assert.Equal(t, "tool", msgs[3].Role)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)
	assert.Equal(t, "Sprint 1\nSprint 2", msgs[3].Content)
}

func TestLoop_ApprovalToolAlwaysOffered(t *testing.T) {
	p := &scriptedProvider{replies: []reply{answer("done")}}
	l := newTestLoop(t, p, 5, nil, &fakeTool{name: "read_file"})

	_, err := l.Run(context.Background(), domain.Task{Text: "x"}, scrumProfile())
	require.NoError(t, err)

	var names []string
	for _, d := range p.requests[0].Tools {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"request_approval", "read_file"}, names)
}

func TestLoop_UnknownToolIsObservedAndPlanningContinues(t *testing.T) {
	p := &scriptedProvider{replies: []reply{
		callTool("call_1", "delete_everything", map[string]any{}),
		answer("I cannot do that."),
	}}
	l := newTestLoop(t, p, 5, nil, &fakeTool{name: "read_file"})

	rec, err := l.Run(context.Background(), domain.Task{Text: "x"}, scrumProfile())
	require.NoError(t, err)

	assert.Equal(t, domain.RunDone, rec.Status)
	require.Len(t, rec.Steps, 1)
	assert.Equal(t, domain.ObservationUnknownTool, rec.Steps[0].Kind)
	assert.Contains(t, rec.Steps[0].Observation, `unknown tool "delete_everything"`)
	assert.Contains(t, rec.Steps[0].Observation, "read_file")
	assert.Contains(t, rec.Steps[0].Observation, "request_approval")
}

func TestLoop_DeniedToolIsUnknownToTheRun(t *testing.T) {
	pipeline := &fakeTool{name: "pipelines_run_pipeline", result: "queued"}
	p := &scriptedProvider{replies: []reply{
		callTool("call_1", "pipelines_run_pipeline", map[string]any{}),
		answer("ok"),
	}}
	l := newTestLoop(t, p, 5, nil, pipeline)

	profile := scrumProfile()
	profile.DeniedTools = []string{"pipelines_run_pipeline"}
	rec, err := l.Run(context.Background(), domain.Task{Text: "x"}, profile)
	require.NoError(t, err)

	require.Len(t, rec.Steps, 1)
	assert.Equal(t, domain.ObservationUnknownTool, rec.Steps[0].Kind)
	assert.Empty(t, pipeline.calls)
	for _, d := range p.requests[0].Tools {
		assert.NotEqual(t, "pipelines_run_pipeline", d.Name)
	}
}

func TestLoop_StepBudgetExhausted(t *testing.T) {
	p := &scriptedProvider{replies: []reply{
		{resp: &domain.ChatResponse{
			Content:   "Checking again.",
			ToolCalls: []domain.ToolCall{{ID: "c", Name: "read_file", Arguments: map[string]any{}}},
		}},
	}}
	l := newTestLoop(t, p, 3, nil, &fakeTool{name: "read_file", result: "contents"})

	rec, err := l.Run(context.Background(), domain.Task{Text: "loop forever"}, scrumProfile())
	require.NoError(t, err)

	assert.Equal(t, domain.RunBudgetExhausted, rec.Status)
	assert.Equal(t, domain.KindStepBudgetExhausted, rec.ErrorKind)
	assert.Len(t, rec.Steps, 3)
	assert.Equal(t, 3, p.calls())
	assert.Equal(t, "Checking again.", rec.FinalAnswer)
	assert.True(t, rec.Incomplete())
}

func TestLoop_StepsNeverExceedBudget(t *testing.T) {
	for _, budget := range []int{1, 2, 7} {
		p := &scriptedProvider{replies: []reply{callTool("c", "read_file", map[string]any{})}}
		l := newTestLoop(t, p, budget, nil, &fakeTool{name: "read_file"})

		rec, err := l.Run(context.Background(), domain.Task{Text: "x"}, scrumProfile())
		require.NoError(t, err)
		assert.Len(t, rec.Steps, budget)
		for i, s := range rec.Steps {
			assert.Equal(t, i+1, s.Index)
		}
	}
}

func TestLoop_IterationNotFoundIsVerbatimObservation(t *testing.T) {
	msg := "Iteration 'Sprint 9' not found for team 'Team Alpha'. Available iterations: 'Sprint 1', 'Sprint 2'"
	capacity := &fakeTool{
		name:   "work_get_team_capacity",
		result: msg,
		params: tool.ToolParameters(map[string]tool.Param{
			"team_name":      {Type: "string"},
			"iteration_name": {Type: "string"},
		}, []string{"iteration_name"}),
	}
	p := &scriptedProvider{replies: []reply{
		callTool("c1", "work_get_team_capacity", map[string]any{"iteration_name": "Sprint 9"}),
		callTool("c2", "work_get_team_capacity", map[string]any{"iteration_name": "Sprint 2"}),
		answer("Capacity retrieved."),
	}}
	l := newTestLoop(t, p, 5, nil, capacity)

	rec, err := l.Run(context.Background(), domain.Task{Text: "capacity for Sprint 9"}, scrumProfile())
	require.NoError(t, err)

	require.Len(t, rec.Steps, 2)
	assert.Equal(t, domain.ObservationResult, rec.Steps[0].Kind)
	assert.Equal(t, msg, rec.Steps[0].Observation)
	assert.Equal(t, domain.RunDone, rec.Status)
}

func TestLoop_ToolErrorIsObserved(t *testing.T) {
	broken := &fakeTool{name: "wit_get_work_item", err: errors.New("get work item 7: 404 Not Found")}
	p := &scriptedProvider{replies: []reply{
		callTool("c1", "wit_get_work_item", map[string]any{}),
		answer("Work item 7 does not exist."),
	}}
	l := newTestLoop(t, p, 5, nil, broken)

	rec, err := l.Run(context.Background(), domain.Task{Text: "x"}, scrumProfile())
	require.NoError(t, err)

	require.Len(t, rec.Steps, 1)
	assert.Equal(t, domain.ObservationToolError, rec.Steps[0].Kind)
	assert.Equal(t, "get work item 7: 404 Not Found", rec.Steps[0].Observation)
}

func TestLoop_ParseErrors(t *testing.T) {
	strict := tool.ToolParameters(map[string]tool.Param{
		"iteration_name": {Type: "string"},
	}, []string{"iteration_name"})

	cases := []struct {
		name string
		call domain.ToolCall
		want string
	}{
		{"raw arguments not json", domain.ToolCall{ID: "c", Name: "capacity", RawArguments: "iteration=Sprint 1"}, "must be a JSON object"},
		{"raw arguments not an object", domain.ToolCall{ID: "c", Name: "capacity", RawArguments: "[1,2]"}, "must be a JSON object"},
		{"missing required", domain.ToolCall{ID: "c", Name: "capacity", Arguments: map[string]any{}}, `missing required argument "iteration_name"`},
		{"wrong type", domain.ToolCall{ID: "c", Name: "capacity", Arguments: map[string]any{"iteration_name": 3.0}}, "must be string"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			capacity := &fakeTool{name: "capacity", params: strict}
			p := &scriptedProvider{replies: []reply{
				{resp: &domain.ChatResponse{ToolCalls: []domain.ToolCall{tc.call}}},
				answer("giving up"),
			}}
			l := newTestLoop(t, p, 5, nil, capacity)

			rec, err := l.Run(context.Background(), domain.Task{Text: "x"}, scrumProfile())
			require.NoError(t, err)
			require.Len(t, rec.Steps, 1)
			assert.Equal(t, domain.ObservationParseError, rec.Steps[0].Kind)
			assert.Contains(t, rec.Steps[0].Observation, tc.want)
			assert.Empty(t, capacity.calls, "malformed call must not reach the tool")
		})
	}
}

func TestLoop_EmptyRawArgumentsMeanNoArguments(t *testing.T) {
	lister := &fakeTool{name: "list_files", result: "a.md", params: tool.ToolParameters(map[string]tool.Param{
		"dir_path": {Type: "string"},
	}, nil)}
	p := &scriptedProvider{replies: []reply{
		{resp: &domain.ChatResponse{ToolCalls: []domain.ToolCall{{ID: "c", Name: "list_files"}}}},
		answer("a.md"),
	}}
	l := newTestLoop(t, p, 5, nil, lister)

	rec, err := l.Run(context.Background(), domain.Task{Text: "x"}, scrumProfile())
	require.NoError(t, err)
	require.Len(t, rec.Steps, 1)
	assert.Equal(t, domain.ObservationResult, rec.Steps[0].Kind)
}

func TestLoop_ToolCallEmbeddedInContent(t *testing.T) {
	reader := &fakeTool{name: "read_file", result: "# Notes", params: tool.ToolParameters(map[string]tool.Param{
		"file_path": {Type: "string"},
	}, []string{"file_path"})}
	p := &scriptedProvider{replies: []reply{
		answer("```json\n{\"name\":\"read_file\",\"arguments\":{\"file_path\":\"notes.md\"}}\n```"),
		answer("The notes have a heading."),
	}}
	l := newTestLoop(t, p, 5, nil, reader)

	rec, err := l.Run(context.Background(), domain.Task{Text: "x"}, scrumProfile())
	require.NoError(t, err)
	require.Len(t, rec.Steps, 1)
	assert.Equal(t, "read_file", rec.Steps[0].ToolName)
	assert.Equal(t, "# Notes", rec.Steps[0].Observation)
	assert.True(t, strings.HasPrefix(rec.Steps[0].ToolCallID, "call_"))
}

func TestLoop_OnlyFirstToolCallIsExecuted(t *testing.T) {
	a := &fakeTool{name: "tool_a", result: "A"}
	b := &fakeTool{name: "tool_b", result: "B"}
	p := &scriptedProvider{replies: []reply{
		{resp: &domain.ChatResponse{ToolCalls: []domain.ToolCall{
			{ID: "1", Name: "tool_a", Arguments: map[string]any{}},
			{ID: "2", Name: "tool_b", Arguments: map[string]any{}},
		}}},
		answer("done"),
	}}
	l := newTestLoop(t, p, 5, nil, a, b)

	rec, err := l.Run(context.Background(), domain.Task{Text: "x"}, scrumProfile())
	require.NoError(t, err)
	require.Len(t, rec.Steps, 1)
	assert.Len(t, a.calls, 1)
	assert.Empty(t, b.calls)
}

func TestLoop_HumanResponseIsVerbatim(t *testing.T) {
	var asked string
	gate := gateFunc(func(_ context.Context, details string) (string, error) {
		asked = details
		return "  no, use Sprint 2 instead ", nil
	})
	p := &scriptedProvider{replies: []reply{
		callTool("c1", "request_approval", map[string]any{"operation_details": "Create task in Sprint 3"}),
		answer("Using Sprint 2."),
	}}
	l := newTestLoop(t, p, 5, gate)

	rec, err := l.Run(context.Background(), domain.Task{Text: "x"}, scrumProfile())
	require.NoError(t, err)

	assert.Equal(t, "Create task in Sprint 3", asked)
	require.Len(t, rec.Steps, 1)
	assert.Equal(t, domain.ObservationHumanResponse, rec.Steps[0].Kind)
	assert.Equal(t, "  no, use Sprint 2 instead ", rec.Steps[0].Observation)
}

func TestLoop_HumanGateFailureIsFatal(t *testing.T) {
	gate := gateFunc(func(context.Context, string) (string, error) {
		return "", &domain.HumanGateError{Err: io.EOF}
	})
	p := &scriptedProvider{replies: []reply{
		callTool("c1", "request_approval", map[string]any{"operation_details": "write report"}),
		answer("unreachable"),
	}}
	l := newTestLoop(t, p, 5, gate)

	rec, err := l.Run(context.Background(), domain.Task{Text: "x"}, scrumProfile())
	var hge *domain.HumanGateError
	require.ErrorAs(t, err, &hge)

	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Equal(t, domain.KindHumanGate, rec.ErrorKind)
	assert.Empty(t, rec.Steps)
	assert.Equal(t, 1, p.calls())
}

func TestLoop_ModelErrorIsFatal(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{err: errors.New("503 upstream unavailable")}}}
	l := newTestLoop(t, p, 5, nil)

	rec, err := l.Run(context.Background(), domain.Task{Text: "x"}, scrumProfile())
	var me *domain.ModelError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Equal(t, domain.KindModel, rec.ErrorKind)
	assert.Contains(t, rec.Error, "503 upstream unavailable")
}

func TestLoop_CancelledDuringPlanning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &scriptedProvider{replies: []reply{
		callTool("c1", "read_file", map[string]any{}),
		{hook: func(context.Context) { cancel() }, err: context.Canceled},
	}}
	l := newTestLoop(t, p, 5, nil, &fakeTool{name: "read_file", result: "x"})

	rec, err := l.Run(ctx, domain.Task{Text: "x"}, scrumProfile())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.RunCancelled, rec.Status)
	assert.Equal(t, domain.KindCancelled, rec.ErrorKind)
	assert.Len(t, rec.Steps, 1, "completed steps are kept")
}

func TestLoop_CancelledWhileWaitingForHuman(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate := gateFunc(func(ctx context.Context, _ string) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	})
	p := &scriptedProvider{replies: []reply{
		callTool("c1", "request_approval", map[string]any{"operation_details": "x"}),
	}}
	l := newTestLoop(t, p, 5, gate)

	rec, err := l.Run(ctx, domain.Task{Text: "x"}, scrumProfile())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.RunCancelled, rec.Status)
}

func TestLoop_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &scriptedProvider{replies: []reply{answer("never")}}
	l := newTestLoop(t, p, 5, nil)

	rec, err := l.Run(ctx, domain.Task{Text: "x"}, scrumProfile())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.RunCancelled, rec.Status)
	assert.Zero(t, p.calls())
}

func TestLoop_PolicyWarnings(t *testing.T) {
	auditor, err := policy.NewAuditor(config.PolicyConfig{MutatingPatterns: []string{`^write_file$`}}, tool.ApprovalToolName, nil, testLogger())
	require.NoError(t, err)

	writer := &fakeTool{name: "write_file", result: "written"}
	p := &scriptedProvider{replies: []reply{
		callTool("c1", "write_file", map[string]any{}),
		answer("Report written."),
	}}
	reg := tool.NewRegistry(testLogger())
	reg.Register(writer)
	l, err := NewLoop(LoopConfig{Provider: p, Tools: reg, Auditor: auditor, MaxSteps: 5, Logger: testLogger()})
	require.NoError(t, err)

	profile := scrumProfile()
	profile.RequireApprovalBeforeDone = true
	rec, err := l.Run(context.Background(), domain.Task{Text: "x"}, profile)
	require.NoError(t, err)

	assert.Equal(t, domain.RunDone, rec.Status, "warnings never block")
	assert.Len(t, writer.calls, 1)
	assert.Equal(t, []string{
		"write_file invoked without a preceding request_approval",
		"final answer given without a preceding request_approval",
	}, rec.PolicyWarnings)
}

func TestLoop_ApprovedMutationHasNoWarning(t *testing.T) {
	auditor, err := policy.NewAuditor(config.PolicyConfig{MutatingPatterns: []string{`^write_file$`}}, tool.ApprovalToolName, nil, testLogger())
	require.NoError(t, err)

	gate := gateFunc(func(context.Context, string) (string, error) { return "yes", nil })
	p := &scriptedProvider{replies: []reply{
		callTool("c1", "request_approval", map[string]any{"operation_details": "write"}),
		callTool("c2", "write_file", map[string]any{}),
		callTool("c3", "request_approval", map[string]any{"operation_details": "finish"}),
		answer("Done."),
	}}
	reg := tool.NewRegistry(testLogger())
	reg.Register(&fakeTool{name: "write_file", result: "ok"})
	l, err := NewLoop(LoopConfig{Provider: p, Tools: reg, Gate: gate, Auditor: auditor, MaxSteps: 5, Logger: testLogger()})
	require.NoError(t, err)

	profile := scrumProfile()
	profile.RequireApprovalBeforeDone = true
	rec, err := l.Run(context.Background(), domain.Task{Text: "x"}, profile)
	require.NoError(t, err)
	assert.Empty(t, rec.PolicyWarnings)
	assert.Len(t, rec.Steps, 3)
}

func TestLoop_OnStepObserver(t *testing.T) {
	var seen []int
	p := &scriptedProvider{replies: []reply{
		callTool("c1", "read_file", map[string]any{}),
		callTool("c2", "read_file", map[string]any{}),
		answer("ok"),
	}}
	reg := tool.NewRegistry(testLogger())
	reg.Register(&fakeTool{name: "read_file"})
	l, err := NewLoop(LoopConfig{
		Provider: p,
		Tools:    reg,
		Logger:   testLogger(),
		OnStep:   func(_ string, s domain.AgentStep) { seen = append(seen, s.Index) },
	})
	require.NoError(t, err)

	_, err = l.Run(context.Background(), domain.Task{Text: "x"}, scrumProfile())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}
