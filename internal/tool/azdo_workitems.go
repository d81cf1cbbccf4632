package tool

import (
	"context"
	"fmt"
	"strings"

	"rea/internal/domain"
)

// shortFieldNames maps friendly names accepted in update arguments to field
// reference names.
var shortFieldNames = map[string]string{
	"title":               "System.Title",
	"description":         "System.Description",
	"state":               "System.State",
	"assigned_to":         "System.AssignedTo",
	"area_path":           "System.AreaPath",
	"iteration_path":      "System.IterationPath",
	"tags":                "System.Tags",
	"story_points":        "Microsoft.VSTS.Scheduling.StoryPoints",
	"priority":            "Microsoft.VSTS.Common.Priority",
	"acceptance_criteria": "Microsoft.VSTS.Common.AcceptanceCriteria",
}

func fieldRef(name string) string {
	if ref, ok := shortFieldNames[strings.ToLower(name)]; ok {
		return ref
	}
	return name
}

func (a *azdoTools) workItemTools() []domain.Tool {
	return []domain.Tool{
		&FuncTool{
			ToolName:        "wit_get_work_item",
			ToolDescription: "Get a single work item by id, including title, type, state, assignee, iteration and description.",
			Schema: ToolParameters(map[string]Param{
				"id": {Type: "integer", Description: "Work item id"},
			}, []string{"id"}),
			Fn: a.getWorkItem,
		},
		&FuncTool{
			ToolName:        "wit_create_work_item",
			ToolDescription: "Create a work item (e.g. User Story, Bug, Task). Request approval first.",
			Schema: ToolParameters(map[string]Param{
				"work_item_type":      {Type: "string", Description: "Work item type, e.g. 'User Story', 'Bug', 'Task'"},
				"title":               {Type: "string", Description: "Title"},
				"description":         {Type: "string", Description: "Description (HTML allowed)"},
				"acceptance_criteria": {Type: "string", Description: "Acceptance criteria"},
				"assigned_to":         {Type: "string", Description: "Assignee unique name or email"},
				"area_path":           {Type: "string", Description: "Area path"},
				"iteration_path":      {Type: "string", Description: "Iteration path, e.g. 'Project\\Sprint 1'"},
				"story_points":        {Type: "number", Description: "Story points"},
				"parent_id":           {Type: "integer", Description: "Parent work item id"},
			}, []string{"work_item_type", "title"}),
			Fn: a.createWorkItem,
		},
		&FuncTool{
			ToolName:        "wit_update_work_item",
			ToolDescription: "Update fields of a work item. Field names may be reference names (System.State) or short names (state, title, assigned_to, story_points, iteration_path). Request approval first.",
			Schema: ToolParameters(map[string]Param{
				"id":     {Type: "integer", Description: "Work item id"},
				"fields": {Type: "object", Description: "Map of field name to new value"},
			}, []string{"id", "fields"}),
			Fn: a.updateWorkItem,
		},
		&FuncTool{
			ToolName:        "wit_add_work_item_comment",
			ToolDescription: "Add a comment to a work item. Request approval first.",
			Schema: ToolParameters(map[string]Param{
				"id":      {Type: "integer", Description: "Work item id"},
				"comment": {Type: "string", Description: "Comment text"},
			}, []string{"id", "comment"}),
			Fn: a.addComment,
		},
		&FuncTool{
			ToolName:        "wit_query_work_items",
			ToolDescription: "Run a WIQL query, e.g. \"SELECT [System.Id] FROM WorkItems WHERE [System.State] = 'Active'\", and list matching work items.",
			Schema: ToolParameters(map[string]Param{
				"wiql": {Type: "string", Description: "WIQL query text"},
				"top":  {Type: "integer", Description: "Maximum number of results (default 50)"},
			}, []string{"wiql"}),
			Fn: a.queryWorkItems,
		},
		&FuncTool{
			ToolName:        "wit_get_work_items_for_iteration",
			ToolDescription: "List the work items planned in an iteration path.",
			Schema: ToolParameters(map[string]Param{
				"iteration_path": {Type: "string", Description: "Iteration path, e.g. 'Project\\Sprint 1'"},
			}, []string{"iteration_path"}),
			Fn: a.workItemsForIteration,
		},
	}
}

func (a *azdoTools) getWorkItem(ctx context.Context, args map[string]any) (string, error) {
	id, err := requireInt(args, "id")
	if err != nil {
		return "", err
	}
	wi, err := a.client.GetWorkItem(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get work item %d: %w", id, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Work Item %d (%s)\n", wi.ID, wi.Field("System.WorkItemType"))
	for _, f := range []struct{ label, ref string }{
		{"Title", "System.Title"},
		{"State", "System.State"},
		{"Assigned To", "System.AssignedTo"},
		{"Iteration", "System.IterationPath"},
		{"Area", "System.AreaPath"},
		{"Story Points", "Microsoft.VSTS.Scheduling.StoryPoints"},
		{"Tags", "System.Tags"},
		{"Description", "System.Description"},
		{"Acceptance Criteria", "Microsoft.VSTS.Common.AcceptanceCriteria"},
	} {
		if v := wi.Field(f.ref); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.label, v)
		}
	}
	return b.String(), nil
}

func (a *azdoTools) createWorkItem(ctx context.Context, args map[string]any) (string, error) {
	typ := ArgsString(args, "work_item_type")
	fields := map[string]any{"System.Title": ArgsString(args, "title")}
	for _, key := range []string{"description", "acceptance_criteria", "assigned_to", "area_path", "iteration_path"} {
		if v := ArgsString(args, key); v != "" {
			fields[fieldRef(key)] = v
		}
	}
	if sp, ok := args["story_points"].(float64); ok {
		fields[fieldRef("story_points")] = sp
	}

	wi, err := a.client.CreateWorkItem(ctx, typ, fields)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", typ, err)
	}
	out := fmt.Sprintf("Created %s %d: %s", typ, wi.ID, ArgsString(args, "title"))

	if parent, ok := ArgsInt(args, "parent_id"); ok {
		if _, err := a.client.AddParentLink(ctx, wi.ID, parent); err != nil {
			return out + fmt.Sprintf("\nWarning: could not link to parent %d: %v", parent, err), nil
		}
		out += fmt.Sprintf("\nLinked as child of %d", parent)
	}
	return out, nil
}

func (a *azdoTools) updateWorkItem(ctx context.Context, args map[string]any) (string, error) {
	id, err := requireInt(args, "id")
	if err != nil {
		return "", err
	}
	raw := ArgsMap(args, "fields")
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[fieldRef(k)] = v
	}
	wi, err := a.client.UpdateWorkItem(ctx, id, fields)
	if err != nil {
		return "", fmt.Errorf("update work item %d: %w", id, err)
	}
	return fmt.Sprintf("Updated work item %d (revision %d): %s", wi.ID, wi.Rev, formatWorkItemLine(*wi)), nil
}

func (a *azdoTools) addComment(ctx context.Context, args map[string]any) (string, error) {
	id, err := requireInt(args, "id")
	if err != nil {
		return "", err
	}
	c, err := a.client.AddComment(ctx, id, ArgsString(args, "comment"))
	if err != nil {
		return "", fmt.Errorf("add comment to %d: %w", id, err)
	}
	return fmt.Sprintf("Added comment %d to work item %d", c.ID, id), nil
}

func (a *azdoTools) queryWorkItems(ctx context.Context, args map[string]any) (string, error) {
	top, ok := ArgsInt(args, "top")
	if !ok || top <= 0 {
		top = 50
	}
	items, err := a.client.QueryWorkItems(ctx, ArgsString(args, "wiql"), top)
	if err != nil {
		return "", fmt.Errorf("query work items: %w", err)
	}
	return formatWorkItemList(items), nil
}

func (a *azdoTools) workItemsForIteration(ctx context.Context, args map[string]any) (string, error) {
	path := strings.ReplaceAll(ArgsString(args, "iteration_path"), "'", "''")
	wiql := fmt.Sprintf(
		"SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = @project AND [System.IterationPath] = '%s' ORDER BY [Microsoft.VSTS.Common.Priority]",
		path)
	items, err := a.client.QueryWorkItems(ctx, wiql, 200)
	if err != nil {
		return "", fmt.Errorf("work items for iteration: %w", err)
	}
	return formatWorkItemList(items), nil
}
