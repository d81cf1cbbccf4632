package domain

import "time"

// ObservationKind classifies how a step's observation was produced.
type ObservationKind string

const (
	ObservationResult        ObservationKind = "result"
	ObservationToolError     ObservationKind = "tool_error"
	ObservationUnknownTool   ObservationKind = "unknown_tool"
	ObservationParseError    ObservationKind = "parse_error"
	ObservationHumanResponse ObservationKind = "human_response"
)

// AgentStep is one PLANNING → ACTING → OBSERVING cycle.
type AgentStep struct {
	Index            int             `json:"index"`
	Reasoning        string          `json:"reasoning,omitempty"`
	ToolName         string          `json:"tool_name,omitempty"`
	ToolCallID       string          `json:"tool_call_id,omitempty"`
	Arguments        map[string]any  `json:"arguments,omitempty"`
	Observation      string          `json:"observation"`
	Kind             ObservationKind `json:"kind"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	Duration         time.Duration   `json:"duration_ns"`
	StartedAt        time.Time       `json:"started_at"`
}

type RunStatus string

const (
	RunRunning         RunStatus = "running"
	RunDone            RunStatus = "done"
	RunBudgetExhausted RunStatus = "budget_exhausted"
	RunFailed          RunStatus = "failed"
	RunCancelled       RunStatus = "cancelled"
)

// CostSummary is the token and dollar total of a run.
type CostSummary struct {
	TotalTokens      int     `json:"total_tokens"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalCost        float64 `json:"total_cost_usd"`
}

// AddUsage adds token usage and its dollar cost.
func (c *CostSummary) AddUsage(u Usage, cost float64) {
	c.PromptTokens += u.PromptTokens
	c.CompletionTokens += u.CompletionTokens
	total := u.TotalTokens
	if total == 0 {
		total = u.PromptTokens + u.CompletionTokens
	}
	c.TotalTokens += total
	c.TotalCost += cost
}

// RunRecord is the complete account of one run.
type RunRecord struct {
	ID             string      `json:"id"`
	Task           string      `json:"task"`
	Role           Role        `json:"role,omitempty"`
	Model          string      `json:"model,omitempty"`
	Status         RunStatus   `json:"status"`
	Steps          []AgentStep `json:"steps"`
	FinalAnswer    string      `json:"final_answer,omitempty"`
	Cost           CostSummary `json:"cost"`
	ErrorKind      string      `json:"error_kind,omitempty"`
	Error          string      `json:"error,omitempty"`
	PolicyWarnings []string    `json:"policy_warnings,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     time.Time   `json:"finished_at"`
}

// Incomplete reports whether the run ended without a final answer.
func (r *RunRecord) Incomplete() bool {
	return r.Status != RunDone
}

// Duration is the wall time of a finished run.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
