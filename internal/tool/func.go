package tool

import (
	"context"

	"rea/internal/domain"
)

// FuncTool adapts a function to domain.Tool.
type FuncTool struct {
	ToolName        string
	ToolDescription string
	Schema          map[string]any
	Fn              func(ctx context.Context, args map[string]any) (string, error)
}

func (f *FuncTool) Name() string               { return f.ToolName }
func (f *FuncTool) Description() string        { return f.ToolDescription }
func (f *FuncTool) Parameters() map[string]any { return f.Schema }

func (f *FuncTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return f.Fn(ctx, args)
}

var _ domain.Tool = (*FuncTool)(nil)
