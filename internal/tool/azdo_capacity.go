package tool

import (
	"context"
	"fmt"
	"strings"

	"rea/internal/domain"
)

func (a *azdoTools) teamTools() []domain.Tool {
	return []domain.Tool{
		&FuncTool{
			ToolName:        "work_get_team_members",
			ToolDescription: "Get the members of a team, with unique names and admin status.",
			Schema: ToolParameters(map[string]Param{
				"team_name": {Type: "string", Description: "Team name, e.g. 'Team Alpha'"},
			}, nil),
			Fn: a.teamMembers,
		},
		&FuncTool{
			ToolName:        "work_list_team_iterations",
			ToolDescription: "List the iterations (sprints) of a team with their dates.",
			Schema: ToolParameters(map[string]Param{
				"team_name": {Type: "string", Description: "Team name"},
			}, nil),
			Fn: a.teamIterations,
		},
		&FuncTool{
			ToolName:        "work_get_team_capacity_for_iteration",
			ToolDescription: "Get each team member's capacity (hours per day per activity) and days off for an iteration.",
			Schema: ToolParameters(map[string]Param{
				"team_name":      {Type: "string", Description: "Team name"},
				"iteration_name": {Type: "string", Description: "Iteration name, e.g. 'Sprint 1'"},
			}, []string{"iteration_name"}),
			Fn: a.teamCapacity,
		},
	}
}

func (a *azdoTools) teamMembers(ctx context.Context, args map[string]any) (string, error) {
	team, err := a.team(args)
	if err != nil {
		return "", err
	}
	members, err := a.client.TeamMembers(ctx, team)
	if err != nil {
		return "", fmt.Errorf("team members: %w", err)
	}
	if len(members) == 0 {
		return fmt.Sprintf("No team members found for team '%s'", team), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Team Members for '%s' (%d members):\n\n", team, len(members))
	for _, m := range members {
		fmt.Fprintf(&b, "Name: %s\nUnique Name: %s\nID: %s\nTeam Admin: %t\n---\n",
			m.Identity.DisplayName, m.Identity.UniqueName, m.Identity.ID, m.IsTeamAdmin)
	}
	return b.String(), nil
}

func (a *azdoTools) teamIterations(ctx context.Context, args map[string]any) (string, error) {
	team, err := a.team(args)
	if err != nil {
		return "", err
	}
	iterations, err := a.client.TeamIterations(ctx, team)
	if err != nil {
		return "", fmt.Errorf("team iterations: %w", err)
	}
	if len(iterations) == 0 {
		return fmt.Sprintf("No iterations found for team '%s'", team), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Iterations for '%s':\n", team)
	for _, it := range iterations {
		fmt.Fprintf(&b, "- %s (%s) %s to %s [%s]\n", it.Name, it.Path,
			dateOrDash(it.Attributes.StartDate), dateOrDash(it.Attributes.FinishDate), it.Attributes.TimeFrame)
	}
	return b.String(), nil
}

func (a *azdoTools) teamCapacity(ctx context.Context, args map[string]any) (string, error) {
	team, err := a.team(args)
	if err != nil {
		return "", err
	}
	name := ArgsString(args, "iteration_name")

	it, all, found, err := a.client.FindIteration(ctx, team, name)
	if err != nil {
		return "", fmt.Errorf("team capacity: %w", err)
	}
	if !found {
		names := make([]string, len(all))
		for i, x := range all {
			names[i] = "'" + x.Name + "'"
		}
		return fmt.Sprintf("Iteration '%s' not found for team '%s'. Available iterations: %s",
			name, team, strings.Join(names, ", ")), nil
	}

	capacity, err := a.client.TeamCapacity(ctx, team, it.ID)
	if err != nil {
		return "", fmt.Errorf("team capacity: %w", err)
	}
	if len(capacity.TeamMembers) == 0 {
		return fmt.Sprintf("No capacity information found for team '%s' in iteration '%s'", team, name), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Team Capacity for '%s' - Iteration '%s':\n\n", team, name)
	for _, m := range capacity.TeamMembers {
		fmt.Fprintf(&b, "Member: %s\nID: %s\n", m.TeamMember.DisplayName, m.TeamMember.ID)
		if len(m.Activities) > 0 {
			b.WriteString("Activities:\n")
			for _, act := range m.Activities {
				fmt.Fprintf(&b, "  - %s: %g hours/day\n", act.Name, act.CapacityPerDay)
			}
		}
		if len(m.DaysOff) > 0 {
			fmt.Fprintf(&b, "Days Off (%d days):\n", len(m.DaysOff))
			for _, d := range m.DaysOff {
				fmt.Fprintf(&b, "  - Start: %s, End: %s\n", d.Start.Format("2006-01-02"), d.End.Format("2006-01-02"))
			}
		} else {
			b.WriteString("Days Off: None\n")
		}
		b.WriteString("---\n")
	}
	fmt.Fprintf(&b, "\nSummary:\nTotal Team Members: %d\nTotal Capacity per Day: %g hours\nTotal Days Off: %d days\n",
		len(capacity.TeamMembers), capacity.TotalCapacityPerDay, capacity.TotalDaysOff)
	return b.String(), nil
}
