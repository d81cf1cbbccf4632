package agent

import "rea/internal/domain"

// ToolFilter is a run's view of the tool registry, built from the profile's
// allow and deny lists.
type ToolFilter struct {
	allowedTools map[string]bool // if non-empty, only these tools are allowed
	deniedTools  map[string]bool // these tools are always denied
}

// NewToolFilter creates a tool filter from allow/deny lists.
// If allowedTools is non-empty, only those tools are permitted.
// DeniedTools are always blocked regardless of allow list.
func NewToolFilter(allowed, denied []string) *ToolFilter {
	tf := &ToolFilter{
		allowedTools: make(map[string]bool),
		deniedTools:  make(map[string]bool),
	}
	for _, t := range allowed {
		tf.allowedTools[t] = true
	}
	for _, t := range denied {
		tf.deniedTools[t] = true
	}
	return tf
}

// ProfileFilter returns the filter for a behavior profile.
func ProfileFilter(p domain.Profile) *ToolFilter {
	return NewToolFilter(p.AllowedTools, p.DeniedTools)
}

// FilterDefinitions returns only the tool definitions that pass the filter.
func (tf *ToolFilter) FilterDefinitions(defs []domain.ToolDefinition) []domain.ToolDefinition {
	if tf.IsEmpty() {
		return defs
	}

	filtered := make([]domain.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		if tf.IsAllowed(d.Name) {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// FilterNames returns the names that pass the filter, in input order.
func (tf *ToolFilter) FilterNames(names []string) []string {
	if tf.IsEmpty() {
		return names
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if tf.IsAllowed(n) {
			out = append(out, n)
		}
	}
	return out
}

// IsAllowed returns true if the tool name passes the filter.
func (tf *ToolFilter) IsAllowed(name string) bool {
	if tf == nil {
		return true
	}
	if tf.deniedTools[name] {
		return false
	}
	if len(tf.allowedTools) > 0 {
		return tf.allowedTools[name]
	}
	return true
}

// IsEmpty returns true if the filter has no rules.
func (tf *ToolFilter) IsEmpty() bool {
	return tf == nil || (len(tf.allowedTools) == 0 && len(tf.deniedTools) == 0)
}
