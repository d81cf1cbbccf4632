package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rea/internal/domain"
)

func TestToolFilter_NilAndEmpty(t *testing.T) {
	var tf *ToolFilter
	assert.True(t, tf.IsAllowed("write_file"))
	assert.True(t, tf.IsEmpty())

	tf = NewToolFilter(nil, nil)
	assert.True(t, tf.IsAllowed("write_file"))
	assert.True(t, tf.IsEmpty())
}

func TestToolFilter_AllowList(t *testing.T) {
	tf := NewToolFilter([]string{"read_file", "wit_get_work_item"}, nil)
	assert.True(t, tf.IsAllowed("read_file"))
	assert.True(t, tf.IsAllowed("wit_get_work_item"))
	assert.False(t, tf.IsAllowed("write_file"))
}

func TestToolFilter_DenyWinsOverAllow(t *testing.T) {
	tf := NewToolFilter([]string{"write_file", "read_file"}, []string{"write_file"})
	assert.False(t, tf.IsAllowed("write_file"))
	assert.True(t, tf.IsAllowed("read_file"))
	assert.False(t, tf.IsEmpty())
}

func TestToolFilter_FilterDefinitions(t *testing.T) {
	defs := []domain.ToolDefinition{{Name: "read_file"}, {Name: "write_file"}, {Name: "pipelines_run_pipeline"}}

	got := ProfileFilter(domain.Profile{DeniedTools: []string{"pipelines_run_pipeline"}}).FilterDefinitions(defs)
	assert.Equal(t, []domain.ToolDefinition{{Name: "read_file"}, {Name: "write_file"}}, got)

	assert.Equal(t, defs, NewToolFilter(nil, nil).FilterDefinitions(defs))
}

func TestToolFilter_FilterNames(t *testing.T) {
	tf := NewToolFilter([]string{"b", "c"}, []string{"c"})
	assert.Equal(t, []string{"b"}, tf.FilterNames([]string{"a", "b", "c"}))
}
