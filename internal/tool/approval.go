package tool

import (
	"context"
	"errors"
	"fmt"

	"rea/internal/domain"
)

// ApprovalToolName is the name the model uses to reach the human gate.
const ApprovalToolName = "request_approval"

// ApprovalTool exposes a domain.HumanGate to the model. The human's reply is
// returned untouched; a gate failure is a *domain.HumanGateError.
type ApprovalTool struct {
	gate domain.HumanGate
}

func NewApprovalTool(gate domain.HumanGate) *ApprovalTool {
	return &ApprovalTool{gate: gate}
}

func (t *ApprovalTool) Name() string { return ApprovalToolName }
func (t *ApprovalTool) Description() string {
	return "Request human approval before performing sensitive operations. You MUST call this tool before any file " +
		"operation, before creating or updating work items, pull requests or pipelines, before any other change in " +
		"Azure DevOps, and before giving your final answer. Explain what you want to do, why, and the expected outcome. " +
		"Returns the human's reply."
}
func (t *ApprovalTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"operation_details": {Type: "string", Description: "What operation you want to perform, why it is needed and the expected outcome"},
		},
		[]string{"operation_details"},
	)
}

func (t *ApprovalTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if t.gate == nil {
		return "", &domain.HumanGateError{Err: errors.New("no approval channel configured")}
	}
	resp, err := t.gate.Request(ctx, ArgsString(args, "operation_details"))
	if err != nil {
		var hge *domain.HumanGateError
		if errors.As(err, &hge) {
			return "", err
		}
		return "", &domain.HumanGateError{Err: fmt.Errorf("request approval: %w", err)}
	}
	return resp, nil
}

var _ domain.Tool = (*ApprovalTool)(nil)
