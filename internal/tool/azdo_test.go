package tool

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rea/internal/azdo"
	"rea/internal/domain"
)

func newAzdoTools(t *testing.T, handler http.HandlerFunc) map[string]domain.Tool {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := azdo.New(azdo.Config{
		OrganizationURL:     srv.URL,
		PersonalAccessToken: "pat",
		Project:             "Fabrikam",
		HTTPClient:          srv.Client(),
		Logger:              testLogger(),
	})
	require.NoError(t, err)

	byName := make(map[string]domain.Tool)
	for _, tl := range AzureDevOpsTools(client, "Team Alpha") {
		byName[tl.Name()] = tl
	}
	return byName
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestAzureDevOpsTools_Names(t *testing.T) {
	tools := newAzdoTools(t, func(w http.ResponseWriter, r *http.Request) {})
	for _, name := range []string{
		"wit_get_work_item", "wit_create_work_item", "wit_update_work_item", "wit_add_work_item_comment",
		"wit_query_work_items", "wit_get_work_items_for_iteration",
		"repo_list_repos_by_project", "repo_list_pull_requests_by_repo_or_project", "repo_search_commits",
		"pipelines_get_builds", "pipelines_run_pipeline",
		"work_get_team_members", "work_list_team_iterations", "work_get_team_capacity_for_iteration",
	} {
		assert.Contains(t, tools, name)
	}
}

func TestTeamCapacity_IterationNotFound(t *testing.T) {
	tools := newAzdoTools(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Fabrikam/Team Alpha/_apis/work/teamsettings/iterations", r.URL.Path)
		writeJSON(w, map[string]any{"value": []map[string]any{
			{"id": "it-1", "name": "Sprint 1"},
			{"id": "it-2", "name": "Sprint 2"},
		}})
	})

	out, err := tools["work_get_team_capacity_for_iteration"].Execute(context.Background(), map[string]any{
		"team_name": "Team Alpha", "iteration_name": "Sprint 9",
	})
	require.NoError(t, err)
	assert.Equal(t, "Iteration 'Sprint 9' not found for team 'Team Alpha'. Available iterations: 'Sprint 1', 'Sprint 2'", out)
}

func TestTeamCapacity_Found(t *testing.T) {
	tools := newAzdoTools(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Fabrikam/Team Alpha/_apis/work/teamsettings/iterations":
			writeJSON(w, map[string]any{"value": []map[string]any{{"id": "it-1", "name": "Sprint 1"}}})
		case "/Fabrikam/Team Alpha/_apis/work/teamsettings/iterations/it-1/capacities":
			writeJSON(w, map[string]any{
				"teamMembers": []map[string]any{{
					"teamMember": map[string]any{"displayName": "Dana", "id": "u-1"},
					"activities": []map[string]any{{"name": "Development", "capacityPerDay": 6}},
					"daysOff":    []map[string]any{{"start": "2026-03-02T00:00:00Z", "end": "2026-03-03T00:00:00Z"}},
				}},
				"totalCapacityPerDay": 6,
				"totalDaysOff":        2,
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	out, err := tools["work_get_team_capacity_for_iteration"].Execute(context.Background(), map[string]any{
		"iteration_name": "Sprint 1",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Team Capacity for 'Team Alpha' - Iteration 'Sprint 1'")
	assert.Contains(t, out, "Member: Dana")
	assert.Contains(t, out, "  - Development: 6 hours/day")
	assert.Contains(t, out, "  - Start: 2026-03-02, End: 2026-03-03")
	assert.Contains(t, out, "Total Days Off: 2 days")
}

func TestCreateWorkItem_LinksParent(t *testing.T) {
	var calls []string
	tools := newAzdoTools(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		assert.Equal(t, "application/json-patch+json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		switch r.Method {
		case http.MethodPost:
			assert.Contains(t, string(body), `"/fields/System.Title"`)
			writeJSON(w, map[string]any{"id": 101, "rev": 1})
		case http.MethodPatch:
			assert.Contains(t, string(body), "System.LinkTypes.Hierarchy-Reverse")
			writeJSON(w, map[string]any{"id": 101, "rev": 2})
		}
	})

	out, err := tools["wit_create_work_item"].Execute(context.Background(), map[string]any{
		"work_item_type": "Task", "title": "Write tests", "parent_id": 42.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "Created Task 101: Write tests\nLinked as child of 42", out)
	assert.Equal(t, []string{
		"POST /Fabrikam/_apis/wit/workitems/$Task",
		"PATCH /Fabrikam/_apis/wit/workitems/101",
	}, calls)
}

func TestSearchCommits_DaysBack(t *testing.T) {
	orig := now
	now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = orig })

	tools := newAzdoTools(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Fabrikam/_apis/git/repositories/web/commits", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("searchCriteria.fromDate"), "2026-03-03")
		writeJSON(w, map[string]any{"value": []map[string]any{}})
	})

	out, err := tools["repo_search_commits"].Execute(context.Background(), map[string]any{
		"repository_id": "web", "days_back": 7.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "No commits found in repository 'web'.", out)
}

func TestGetWorkItem_ServerErrorSurfaces(t *testing.T) {
	tools := newAzdoTools(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"TF401232: Work item 7 does not exist"}`, http.StatusNotFound)
	})

	_, err := tools["wit_get_work_item"].Execute(context.Background(), map[string]any{"id": 7.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get work item 7")
}
