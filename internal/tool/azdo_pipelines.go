package tool

import (
	"context"
	"fmt"
	"strings"

	"rea/internal/azdo"
	"rea/internal/domain"
)

func (a *azdoTools) pipelineTools() []domain.Tool {
	return []domain.Tool{
		&FuncTool{
			ToolName:        "pipelines_get_builds",
			ToolDescription: "List recent builds, optionally filtered by build definition ids and branch.",
			Schema: ToolParameters(map[string]Param{
				"definition_ids": {Type: "array", Items: "integer", Description: "Build definition ids"},
				"branch":         {Type: "string", Description: "Branch name, e.g. 'main'"},
				"top":            {Type: "integer", Description: "Maximum number of builds (default 20)"},
			}, nil),
			Fn: a.getBuilds,
		},
		&FuncTool{
			ToolName:        "pipelines_run_pipeline",
			ToolDescription: "Queue a run of a pipeline. Request approval first.",
			Schema: ToolParameters(map[string]Param{
				"pipeline_id": {Type: "integer", Description: "Pipeline id"},
				"branch":      {Type: "string", Description: "Branch to run on (default: pipeline default)"},
			}, []string{"pipeline_id"}),
			Fn: a.runPipeline,
		},
	}
}

func (a *azdoTools) getBuilds(ctx context.Context, args map[string]any) (string, error) {
	q := azdo.BuildQuery{
		DefinitionIDs: ArgsIntSlice(args, "definition_ids"),
		Branch:        ArgsString(args, "branch"),
		Top:           20,
	}
	if top, ok := ArgsInt(args, "top"); ok && top > 0 {
		q.Top = top
	}
	builds, err := a.client.ListBuilds(ctx, q)
	if err != nil {
		return "", fmt.Errorf("list builds: %w", err)
	}
	if len(builds) == 0 {
		return "No builds found.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Builds (%d):\n", len(builds))
	for _, bd := range builds {
		result := bd.Result
		if result == "" {
			result = bd.Status
		}
		fmt.Fprintf(&b, "- %d %s [%s] %s on %s\n", bd.ID, bd.BuildNumber, result, bd.Definition.Name,
			strings.TrimPrefix(bd.SourceBranch, "refs/heads/"))
	}
	return b.String(), nil
}

func (a *azdoTools) runPipeline(ctx context.Context, args map[string]any) (string, error) {
	id, err := requireInt(args, "pipeline_id")
	if err != nil {
		return "", err
	}
	run, err := a.client.RunPipeline(ctx, id, ArgsString(args, "branch"))
	if err != nil {
		return "", fmt.Errorf("run pipeline %d: %w", id, err)
	}
	return fmt.Sprintf("Queued pipeline %d: run %d (%s) state %s", id, run.ID, run.Name, run.State), nil
}
