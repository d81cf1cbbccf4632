package azdo

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

func (c *Client) ListBuilds(ctx context.Context, bq BuildQuery) ([]Build, error) {
	q := url.Values{}
	if len(bq.DefinitionIDs) > 0 {
		ids := make([]string, len(bq.DefinitionIDs))
		for i, id := range bq.DefinitionIDs {
			ids[i] = strconv.Itoa(id)
		}
		q.Set("definitions", strings.Join(ids, ","))
	}
	if bq.Branch != "" {
		q.Set("branchName", qualifyRef(bq.Branch))
	}
	if bq.Top > 0 {
		q.Set("$top", strconv.Itoa(bq.Top))
	}
	var res listResponse[Build]
	if err := c.get(ctx, c.projectURL("build/builds", q), &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}

// RunPipeline queues a run of the pipeline, optionally on a specific branch.
func (c *Client) RunPipeline(ctx context.Context, pipelineID int, branch string) (*PipelineRun, error) {
	body := map[string]any{}
	if branch != "" {
		body["resources"] = map[string]any{
			"repositories": map[string]any{
				"self": map[string]string{"refName": qualifyRef(branch)},
			},
		}
	}
	var run PipelineRun
	u := c.projectURL("pipelines/"+strconv.Itoa(pipelineID)+"/runs", nil)
	if err := c.do(ctx, http.MethodPost, u, "", body, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func qualifyRef(branch string) string {
	if strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return "refs/heads/" + branch
}
