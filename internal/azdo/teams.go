package azdo

import (
	"context"
	"net/url"
)

func (c *Client) TeamMembers(ctx context.Context, team string) ([]TeamMember, error) {
	var res listResponse[TeamMember]
	path := "projects/" + url.PathEscape(c.project) + "/teams/" + url.PathEscape(team) + "/members"
	if err := c.get(ctx, c.orgURL(path, nil), &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}

func (c *Client) TeamIterations(ctx context.Context, team string) ([]Iteration, error) {
	var res listResponse[Iteration]
	if err := c.get(ctx, c.teamURL(team, "work/teamsettings/iterations", nil), &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}

// FindIteration returns the team iteration whose name matches exactly, the
// full list of iterations, and whether it was found.
func (c *Client) FindIteration(ctx context.Context, team, name string) (Iteration, []Iteration, bool, error) {
	iterations, err := c.TeamIterations(ctx, team)
	if err != nil {
		return Iteration{}, nil, false, err
	}
	for _, it := range iterations {
		if it.Name == name {
			return it, iterations, true, nil
		}
	}
	return Iteration{}, iterations, false, nil
}

func (c *Client) TeamCapacity(ctx context.Context, team, iterationID string) (*TeamCapacity, error) {
	var res TeamCapacity
	path := "work/teamsettings/iterations/" + url.PathEscape(iterationID) + "/capacities"
	if err := c.get(ctx, c.teamURL(team, path, nil), &res); err != nil {
		return nil, err
	}
	return &res, nil
}
