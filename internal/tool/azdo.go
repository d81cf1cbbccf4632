package tool

import (
	"fmt"
	"strings"
	"time"

	"rea/internal/azdo"
	"rea/internal/domain"
)

// now is the clock used for relative date arguments.
var now = time.Now

// AzureDevOpsTools returns the work item, repository, pipeline and team tools
// backed by c. defaultTeam is used when a team argument is omitted.
func AzureDevOpsTools(c *azdo.Client, defaultTeam string) []domain.Tool {
	a := &azdoTools{client: c, defaultTeam: defaultTeam}
	var tools []domain.Tool
	tools = append(tools, a.workItemTools()...)
	tools = append(tools, a.repoTools()...)
	tools = append(tools, a.pipelineTools()...)
	tools = append(tools, a.teamTools()...)
	return tools
}

type azdoTools struct {
	client      *azdo.Client
	defaultTeam string
}

func (a *azdoTools) team(args map[string]any) (string, error) {
	team := strings.TrimSpace(ArgsString(args, "team_name"))
	if team == "" {
		team = a.defaultTeam
	}
	if team == "" {
		return "", fmt.Errorf("missing argument: team_name")
	}
	return team, nil
}

func requireInt(args map[string]any, key string) (int, error) {
	v, ok := ArgsInt(args, key)
	if !ok {
		return 0, fmt.Errorf("argument %s must be an integer", key)
	}
	return v, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
	}
	return t, nil
}

func formatWorkItemLine(wi azdo.WorkItem) string {
	line := fmt.Sprintf("#%d [%s] %s - %s", wi.ID, wi.Field("System.WorkItemType"), wi.Field("System.State"), wi.Field("System.Title"))
	if who := wi.Field("System.AssignedTo"); who != "" {
		line += " (" + who + ")"
	}
	return line
}

func formatWorkItemList(items []azdo.WorkItem) string {
	if len(items) == 0 {
		return "No work items found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d work items:\n", len(items))
	for _, wi := range items {
		b.WriteString(formatWorkItemLine(wi))
		b.WriteByte('\n')
	}
	return b.String()
}

func dateOrDash(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
