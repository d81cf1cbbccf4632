package domain

import "context"

// Tool is the interface for agent capabilities (work items, repositories, files, approval).
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// HumanGate blocks until a human answers the given operation details.
// The response is returned as typed; callers must not interpret it.
type HumanGate interface {
	Request(ctx context.Context, operationDetails string) (string, error)
}

// RunRecorder persists a finished run: its id, ordered steps and cost summary.
type RunRecorder interface {
	Record(ctx context.Context, rec *RunRecord) error
}
