package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rea/internal/domain"
)

func TestTaskText(t *testing.T) {
	got, err := taskText([]string{"  plan sprint 5  "}, nil)
	require.NoError(t, err)
	assert.Equal(t, "plan sprint 5", got)

	got, err = taskText(nil, strings.NewReader("review PR 12\n"))
	require.NoError(t, err)
	assert.Equal(t, "review PR 12", got)

	_, err = taskText([]string{"   "}, nil)
	assert.Error(t, err)
	_, err = taskText(nil, strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadTaskFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.txt")
	require.NoError(t, os.WriteFile(path, []byte("# backlog\nwrite stories for login\n\n  summarize sprint 4 \n"), 0o644))

	tasks, err := readTaskFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"write stories for login", "summarize sprint 4"}, tasks)

	_, err = readTaskFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestPrintRecord(t *testing.T) {
	rec := &domain.RunRecord{
		ID:     "r1",
		Role:   domain.RoleScrumLead,
		Status: domain.RunBudgetExhausted,
		Steps: []domain.AgentStep{
			{Index: 1, ToolName: "list_files", Arguments: map[string]any{"dir_path": "."}, Observation: "a.txt", Kind: domain.ObservationResult},
		},
		FinalAnswer:    "Checking again.",
		Error:          "step budget exhausted",
		PolicyWarnings: []string{"write_file ran without approval"},
		Cost:           domain.CostSummary{TotalTokens: 330, TotalCost: 0.0012},
	}

	var buf bytes.Buffer
	printRecord(&buf, rec, false, true)
	out := buf.String()
	assert.Contains(t, out, `[step 1] list_files {"dir_path":"."} (result)`)
	assert.Contains(t, out, "Checking again.")
	assert.Contains(t, out, "status: budget_exhausted (step budget exhausted)")
	assert.Contains(t, out, "warning: write_file ran without approval")
	assert.Contains(t, out, "role: Scrum Lead")
	assert.Contains(t, out, "cost: $0.001200")

	buf.Reset()
	printRecord(&buf, rec, true, false)
	assert.Contains(t, buf.String(), `"status": "budget_exhausted"`)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "abcdefg...", clip("abcdefghijklmnop", 10))
}

func TestGateFlagListsEveryMode(t *testing.T) {
	for _, cmd := range []*cobra.Command{runCmd(), serveCmd()} {
		usage := cmd.Flags().Lookup("gate").Usage
		for _, mode := range []string{"console", "telegram", "slack", "discord", "none"} {
			assert.Contains(t, usage, mode, cmd.Name())
		}
	}
}
