package azdo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const jsonPatch = "application/json-patch+json"

// maxBatch is the largest id list the work items endpoint accepts.
const maxBatch = 200

func (c *Client) GetWorkItem(ctx context.Context, id int) (*WorkItem, error) {
	var wi WorkItem
	if err := c.get(ctx, c.projectURL("wit/workitems/"+strconv.Itoa(id), nil), &wi); err != nil {
		return nil, err
	}
	return &wi, nil
}

// GetWorkItems fetches work items by id, in batches.
func (c *Client) GetWorkItems(ctx context.Context, ids []int) ([]WorkItem, error) {
	var out []WorkItem
	for start := 0; start < len(ids); start += maxBatch {
		end := min(start+maxBatch, len(ids))
		parts := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			parts = append(parts, strconv.Itoa(id))
		}
		var page listResponse[WorkItem]
		q := url.Values{"ids": {strings.Join(parts, ",")}}
		if err := c.get(ctx, c.projectURL("wit/workitems", q), &page); err != nil {
			return nil, err
		}
		out = append(out, page.Value...)
	}
	return out, nil
}

// CreateWorkItem creates a work item of the given type ("Bug", "User Story", ...)
// with the given field values, keyed by reference name (System.Title, ...).
func (c *Client) CreateWorkItem(ctx context.Context, workItemType string, fields map[string]any) (*WorkItem, error) {
	if _, ok := fields["System.Title"]; !ok {
		return nil, fmt.Errorf("work item title is required")
	}
	var wi WorkItem
	u := c.projectURL("wit/workitems/$"+url.PathEscape(workItemType), nil)
	if err := c.do(ctx, http.MethodPost, u, jsonPatch, fieldPatch(fields), &wi); err != nil {
		return nil, err
	}
	return &wi, nil
}

// UpdateWorkItem sets the given fields on an existing work item.
func (c *Client) UpdateWorkItem(ctx context.Context, id int, fields map[string]any) (*WorkItem, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	var wi WorkItem
	u := c.projectURL("wit/workitems/"+strconv.Itoa(id), nil)
	if err := c.do(ctx, http.MethodPatch, u, jsonPatch, fieldPatch(fields), &wi); err != nil {
		return nil, err
	}
	return &wi, nil
}

func (c *Client) AddComment(ctx context.Context, id int, text string) (*Comment, error) {
	var cm Comment
	u := c.projectURL("wit/workItems/"+strconv.Itoa(id)+"/comments", url.Values{"api-version": {"7.0-preview.3"}})
	if err := c.do(ctx, http.MethodPost, u, "", map[string]string{"text": text}, &cm); err != nil {
		return nil, err
	}
	return &cm, nil
}

// QueryWorkItems runs a WIQL query and returns at most top matching items.
func (c *Client) QueryWorkItems(ctx context.Context, wiql string, top int) ([]WorkItem, error) {
	var res struct {
		WorkItems []struct {
			ID int `json:"id"`
		} `json:"workItems"`
	}
	q := url.Values{}
	if top > 0 {
		q.Set("$top", strconv.Itoa(top))
	}
	if err := c.do(ctx, http.MethodPost, c.projectURL("wit/wiql", q), "", map[string]string{"query": wiql}, &res); err != nil {
		return nil, err
	}
	if len(res.WorkItems) == 0 {
		return nil, nil
	}
	ids := make([]int, len(res.WorkItems))
	for i, w := range res.WorkItems {
		ids[i] = w.ID
	}
	return c.GetWorkItems(ctx, ids)
}

func fieldPatch(fields map[string]any) []PatchOperation {
	ops := make([]PatchOperation, 0, len(fields))
	for _, name := range sortedKeys(fields) {
		ops = append(ops, PatchOperation{Op: "add", Path: "/fields/" + name, Value: fields[name]})
	}
	return ops
}

// AddParentLink makes child a child of parent.
func (c *Client) AddParentLink(ctx context.Context, child, parent int) (*WorkItem, error) {
	ops := []PatchOperation{{
		Op:   "add",
		Path: "/relations/-",
		Value: map[string]any{
			"rel": "System.LinkTypes.Hierarchy-Reverse",
			"url": c.orgURLNoVersion("wit/workItems/" + strconv.Itoa(parent)),
		},
	}}
	var wi WorkItem
	u := c.projectURL("wit/workitems/"+strconv.Itoa(child), nil)
	if err := c.do(ctx, http.MethodPatch, u, jsonPatch, ops, &wi); err != nil {
		return nil, err
	}
	return &wi, nil
}
