package tool

import (
	"context"
	"testing"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoardServer() *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("board", "0.1.0", mcpserver.WithToolCapabilities(true))
	s.AddTool(
		mcplib.NewTool("get-sprint",
			mcplib.WithDescription("Return the current sprint for a team"),
			mcplib.WithString("team", mcplib.Required(), mcplib.Description("Team name")),
		),
		func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
			team := req.GetString("team", "")
			if team == "" {
				return mcplib.NewToolResultError("team is required"), nil
			}
			return mcplib.NewToolResultText("Sprint 7 for " + team), nil
		},
	)
	return s
}

func connectBoard(t *testing.T) *MCPClient {
	t.Helper()
	ctx := context.Background()

	c, err := mcpclient.NewInProcessClient(newBoardServer())
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))

	mc, err := NewMCPClient(ctx, "Board", c, "test", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func TestMCPClient_ToolsAndExecute(t *testing.T) {
	mc := connectBoard(t)

	tools, err := mc.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)

	sprint := tools[0]
	assert.Equal(t, "mcp_board_get_sprint", sprint.Name())
	assert.Equal(t, "Return the current sprint for a team", sprint.Description())
	assert.Equal(t, []any{"team"}, sprint.Parameters()["required"])

	out, err := sprint.Execute(context.Background(), map[string]any{"team": "Alpha"})
	require.NoError(t, err)
	assert.Equal(t, "Sprint 7 for Alpha", out)
}

func TestMCPClient_ToolErrorResult(t *testing.T) {
	mc := connectBoard(t)
	tools, err := mc.Tools(context.Background())
	require.NoError(t, err)

	_, err = tools[0].Execute(context.Background(), map[string]any{})
	assert.EqualError(t, err, "team is required")
}

func TestMCPToolsValidateAgainstServerSchema(t *testing.T) {
	mc := connectBoard(t)
	tools, err := mc.Tools(context.Background())
	require.NoError(t, err)

	assert.Error(t, ValidateArgs(tools[0].Name(), tools[0].Parameters(), map[string]any{}))
	assert.NoError(t, ValidateArgs(tools[0].Name(), tools[0].Parameters(), map[string]any{"team": "Alpha"}))
}

func TestMCPToolName(t *testing.T) {
	assert.Equal(t, "mcp_azure_devops_wit_get", MCPToolName("Azure DevOps", "wit.get"))
	assert.Equal(t, "mcp_ado_list_repos", MCPToolName("ado", "list-repos"))
}
