package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds as reported on RunRecord.ErrorKind.
const (
	KindClassificationParse = "ClassificationParseError"
	KindUnknownRole         = "UnknownRoleError"
	KindUnknownTool         = "UnknownToolError"
	KindToolInvocation      = "ToolInvocationError"
	KindStepBudgetExhausted = "StepBudgetExhausted"
	KindHumanGate           = "HumanGateError"
	KindModel               = "ModelError"
	KindCancelled           = "Cancelled"
)

// ErrStepBudgetExhausted marks a run that used every step without a final answer.
var ErrStepBudgetExhausted = errors.New("step budget exhausted without a final answer")

// ClassificationParseError means no JSON role decision could be extracted.
type ClassificationParseError struct {
	Response string
	Err      error
}

func (e *ClassificationParseError) Error() string {
	return fmt.Sprintf("classification parse: %v", e.Err)
}

func (e *ClassificationParseError) Unwrap() error { return e.Err }

// UnknownRoleError means a role name outside the fixed set was produced or supplied.
type UnknownRoleError struct {
	Value string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role %q (expected one of: product owner, scrum lead, peer reviewer)", e.Value)
}

// UnknownToolError means the model asked for a tool that is not in the registry.
type UnknownToolError struct {
	Name      string
	Available []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// ToolInvocationError wraps a failure raised by a tool.
type ToolInvocationError struct {
	Tool string
	Err  error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// HumanGateError means the approval channel could not produce a response.
type HumanGateError struct {
	Err error
}

func (e *HumanGateError) Error() string {
	return fmt.Sprintf("human gate unavailable: %v", e.Err)
}

func (e *HumanGateError) Unwrap() error { return e.Err }

// ModelError wraps a language-model call that failed after provider retries.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model call: %v", e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// ErrorKind returns the taxonomy name of err, or "" when it has none.
func ErrorKind(err error) string {
	var (
		cpe *ClassificationParseError
		ure *UnknownRoleError
		ute *UnknownToolError
		tie *ToolInvocationError
		hge *HumanGateError
		me  *ModelError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cpe):
		return KindClassificationParse
	case errors.As(err, &ure):
		return KindUnknownRole
	case errors.As(err, &ute):
		return KindUnknownTool
	case errors.As(err, &tie):
		return KindToolInvocation
	case errors.As(err, &hge):
		return KindHumanGate
	case errors.Is(err, ErrStepBudgetExhausted):
		return KindStepBudgetExhausted
	case errors.As(err, &me):
		return KindModel
	}
	return ""
}
