package tool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rea/internal/domain"
)

// stubTool is a minimal tool for testing the registry.
type stubTool struct {
	name   string
	result string
	err    error
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub: " + s.name }
func (s *stubTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (s *stubTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return s.result, s.err
}

var _ domain.Tool = (*stubTool)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "test_tool", result: "ok"})

	got := reg.Get("test_tool")
	require.NotNil(t, got)
	assert.Equal(t, "test_tool", got.Name())
	assert.Nil(t, reg.Get("nonexistent"))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_Execute(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "echo", result: "hello"})

	result, err := reg.Execute(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}

func TestRegistry_ExecuteUnknownIsTyped(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "alpha"})

	_, err := reg.Execute(context.Background(), "missing", nil)
	var ute *domain.UnknownToolError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "missing", ute.Name)
	assert.Equal(t, []string{"alpha"}, ute.Available)
}

func TestRegistry_ExecuteToolFailureIsTyped(t *testing.T) {
	cause := errors.New("Iteration not found")
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "capacity", err: cause})

	_, err := reg.Execute(context.Background(), "capacity", nil)
	var tie *domain.ToolInvocationError
	require.ErrorAs(t, err, &tie)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, domain.KindToolInvocation, domain.ErrorKind(err))
}

func TestRegistry_NamesAndDefinitionsSorted(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "beta"}, &stubTool{name: "alpha"})

	assert.Equal(t, []string{"alpha", "beta"}, reg.Names())
	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "stub: alpha", defs[0].Description)
}

func TestRegistry_OverwriteAndUnregister(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "dup", result: "v1"})
	reg.Register(&stubTool{name: "dup", result: "v2"})

	result, _ := reg.Execute(context.Background(), "dup", nil)
	assert.Equal(t, "v2", result)

	reg.Unregister("dup")
	assert.Nil(t, reg.Get("dup"))
}

// --- ToolParameters ---

func TestToolParameters(t *testing.T) {
	params := ToolParameters(
		map[string]Param{
			"name":   {Type: "string", Description: "The name"},
			"ids":    {Type: "array", Items: "integer", Description: "Ids"},
			"status": {Type: "string", Description: "Status", Enum: []string{"active", "closed"}},
		},
		[]string{"name"},
	)

	assert.Equal(t, "object", params["type"])
	props := params["properties"].(map[string]any)
	assert.Len(t, props, 3)
	assert.Equal(t, map[string]any{"type": "integer"}, props["ids"].(map[string]any)["items"])
	assert.Equal(t, []string{"active", "closed"}, props["status"].(map[string]any)["enum"])
	assert.Equal(t, []string{"name"}, params["required"])

	params = ToolParameters(map[string]Param{"q": {Type: "string"}}, nil)
	assert.NotContains(t, params, "required")
}

// --- argument helpers ---

func TestArgsString(t *testing.T) {
	assert.Equal(t, "value", ArgsString(map[string]any{"key": "value"}, "key"))
	assert.Equal(t, "", ArgsString(map[string]any{"other": "value"}, "key"))
	assert.Equal(t, "", ArgsString(nil, "key"))
	assert.Equal(t, "42", ArgsString(map[string]any{"num": 42.0}, "num"))
}

func TestArgsInt(t *testing.T) {
	cases := []struct {
		in   any
		want int
		ok   bool
	}{
		{float64(42), 42, true},
		{42, 42, true},
		{"17", 17, true},
		{1.5, 0, false},
		{"abc", 0, false},
		{"17abc", 0, false},
		{nil, 0, false},
	}
	for _, tc := range cases {
		got, ok := ArgsInt(map[string]any{"v": tc.in}, "v")
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}

	assert.Equal(t, []int{1, 3}, ArgsIntSlice(map[string]any{"ids": []any{1.0, "x", 3.0}}, "ids"))
}
