package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rea/internal/azdo"
	"rea/internal/domain"
)

func (a *azdoTools) repoTools() []domain.Tool {
	return []domain.Tool{
		&FuncTool{
			ToolName:        "repo_list_repos_by_project",
			ToolDescription: "List the Git repositories of the project.",
			Schema:          ToolParameters(map[string]Param{}, nil),
			Fn:              a.listRepos,
		},
		&FuncTool{
			ToolName:        "repo_list_pull_requests_by_repo_or_project",
			ToolDescription: "List pull requests of a repository, or of the whole project when repository_id is omitted.",
			Schema: ToolParameters(map[string]Param{
				"repository_id": {Type: "string", Description: "Repository name or id (optional)"},
				"status":        {Type: "string", Description: "Pull request status", Enum: []string{"active", "completed", "abandoned", "all"}},
				"top":           {Type: "integer", Description: "Maximum number of results"},
			}, nil),
			Fn: a.listPullRequests,
		},
		&FuncTool{
			ToolName:        "repo_search_commits",
			ToolDescription: "List commits of a repository, optionally within a date window (from_date/to_date as YYYY-MM-DD) or for the last N days (days_back).",
			Schema: ToolParameters(map[string]Param{
				"repository_id": {Type: "string", Description: "Repository name or id"},
				"from_date":     {Type: "string", Description: "Start date, YYYY-MM-DD"},
				"to_date":       {Type: "string", Description: "End date, YYYY-MM-DD"},
				"days_back":     {Type: "integer", Description: "Only commits from the last N days"},
				"author":        {Type: "string", Description: "Author name or email"},
				"top":           {Type: "integer", Description: "Maximum number of commits (default 100)"},
			}, []string{"repository_id"}),
			Fn: a.searchCommits,
		},
	}
}

func (a *azdoTools) listRepos(ctx context.Context, args map[string]any) (string, error) {
	repos, err := a.client.ListRepositories(ctx)
	if err != nil {
		return "", fmt.Errorf("list repositories: %w", err)
	}
	if len(repos) == 0 {
		return fmt.Sprintf("No repositories found in project '%s'.", a.client.Project()), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Repositories in '%s' (%d):\n", a.client.Project(), len(repos))
	for _, r := range repos {
		fmt.Fprintf(&b, "- %s (id: %s, default branch: %s)\n", r.Name, r.ID, r.DefaultBranch)
	}
	return b.String(), nil
}

func (a *azdoTools) listPullRequests(ctx context.Context, args map[string]any) (string, error) {
	top, _ := ArgsInt(args, "top")
	prs, err := a.client.ListPullRequests(ctx, ArgsString(args, "repository_id"), ArgsString(args, "status"), top)
	if err != nil {
		return "", fmt.Errorf("list pull requests: %w", err)
	}
	if len(prs) == 0 {
		return "No pull requests found.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Pull requests (%d):\n", len(prs))
	for _, pr := range prs {
		fmt.Fprintf(&b, "- !%d %s [%s] %s -> %s by %s (%s)\n",
			pr.PullRequestID, pr.Title, pr.Status,
			strings.TrimPrefix(pr.SourceRefName, "refs/heads/"),
			strings.TrimPrefix(pr.TargetRefName, "refs/heads/"),
			pr.CreatedBy.DisplayName, pr.Repository.Name)
	}
	return b.String(), nil
}

func (a *azdoTools) searchCommits(ctx context.Context, args map[string]any) (string, error) {
	q := azdo.CommitQuery{
		RepositoryID: ArgsString(args, "repository_id"),
		Author:       ArgsString(args, "author"),
		Top:          100,
	}
	if top, ok := ArgsInt(args, "top"); ok && top > 0 {
		q.Top = top
	}
	if days, ok := ArgsInt(args, "days_back"); ok && days > 0 {
		q.FromDate = now().AddDate(0, 0, -days)
	}
	if s := ArgsString(args, "from_date"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return "", err
		}
		q.FromDate = t
	}
	if s := ArgsString(args, "to_date"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return "", err
		}
		q.ToDate = t
	}

	commits, err := a.client.SearchCommits(ctx, q)
	if err != nil {
		return "", fmt.Errorf("search commits: %w", err)
	}
	if len(commits) == 0 {
		return fmt.Sprintf("No commits found in repository '%s'.", q.RepositoryID), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Commits in '%s' (%d):\n", q.RepositoryID, len(commits))
	for _, c := range commits {
		id := c.CommitID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(&b, "- %s %s %s: %s\n", id, c.Author.Date.Format(time.DateOnly), c.Author.Name, firstLine(c.Comment))
	}
	return b.String(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
