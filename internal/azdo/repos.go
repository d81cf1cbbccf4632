package azdo

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

func (c *Client) ListRepositories(ctx context.Context) ([]Repository, error) {
	var res listResponse[Repository]
	if err := c.get(ctx, c.projectURL("git/repositories", nil), &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}

// ListPullRequests lists pull requests of one repository, or of the whole
// project when repositoryID is empty. Status defaults to "active".
func (c *Client) ListPullRequests(ctx context.Context, repositoryID, status string, top int) ([]PullRequest, error) {
	if status == "" {
		status = "active"
	}
	q := url.Values{"searchCriteria.status": {status}}
	if top > 0 {
		q.Set("$top", strconv.Itoa(top))
	}
	path := "git/pullrequests"
	if repositoryID != "" {
		path = "git/repositories/" + url.PathEscape(repositoryID) + "/pullrequests"
	}
	var res listResponse[PullRequest]
	if err := c.get(ctx, c.projectURL(path, q), &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}

// SearchCommits lists commits of a repository within an optional date window.
func (c *Client) SearchCommits(ctx context.Context, cq CommitQuery) ([]Commit, error) {
	q := url.Values{}
	if !cq.FromDate.IsZero() {
		q.Set("searchCriteria.fromDate", cq.FromDate.UTC().Format(time.RFC3339))
	}
	if !cq.ToDate.IsZero() {
		q.Set("searchCriteria.toDate", cq.ToDate.UTC().Format(time.RFC3339))
	}
	if cq.Author != "" {
		q.Set("searchCriteria.author", cq.Author)
	}
	if cq.Top > 0 {
		q.Set("searchCriteria.$top", strconv.Itoa(cq.Top))
	}
	var res listResponse[Commit]
	path := "git/repositories/" + url.PathEscape(cq.RepositoryID) + "/commits"
	if err := c.get(ctx, c.projectURL(path, q), &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}
