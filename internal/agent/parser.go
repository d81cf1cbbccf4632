package agent

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"rea/internal/domain"
)

// extractToolCallFromContent parses a tool call that the model wrote into its
// text instead of the structured tool_calls field. Handles:
//   - Pure JSON: `{"name":"read_file","arguments":{...}}`
//   - Code-fenced: ```json\n{...}\n```
//   - Surrounding text: `Sure.\n{"name":"read_file",...}\nLet me do that.`
//   - Arrays of calls, of which only the first is kept
//
// An object only counts as a tool call when it carries both a name and an
// arguments (or parameters) key. When the arguments are not a JSON object the
// call is returned with nil Arguments and the raw text in RawArguments.
func extractToolCallFromContent(content string) (domain.ToolCall, bool) {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) >= 3 && strings.HasPrefix(lines[len(lines)-1], "```") {
			content = strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
		}
	}

	if tc, ok := tryParseToolJSON(content); ok {
		return tc, true
	}
	if start, end := findJSONBounds(content); start >= 0 && end > start {
		if tc, ok := tryParseToolJSON(content[start:end]); ok {
			return tc, true
		}
	}
	return domain.ToolCall{}, false
}

// findJSONBounds locates the first top-level JSON object ({}) or array ([]) in s.
// Returns the start index and end+1 index, or (-1, -1) if not found.
func findJSONBounds(s string) (int, int) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return -1, -1
	}

	openChar := s[start]
	var closeChar byte
	if openChar == '{' {
		closeChar = '}'
	} else {
		closeChar = ']'
	}

	depth := 0
	inStr := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			if ch == '\\' {
				i++
				continue
			}
			if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case openChar:
			depth++
		case closeChar:
			depth--
			if depth == 0 {
				return start, i + 1
			}
		}
	}
	return -1, -1
}

type contentCall struct {
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
	Parameters json.RawMessage `json:"parameters"`
}

// tryParseToolJSON parses raw as a single tool call object or an array of them.
func tryParseToolJSON(raw string) (domain.ToolCall, bool) {
	var single contentCall
	if err := json.Unmarshal([]byte(raw), &single); err != nil {
		_ = json.Unmarshal([]byte(sanitizeJSONEscapes(raw)), &single)
	}
	if tc, ok := single.toolCall(); ok {
		return tc, true
	}

	var multi []contentCall
	if err := json.Unmarshal([]byte(raw), &multi); err != nil {
		_ = json.Unmarshal([]byte(sanitizeJSONEscapes(raw)), &multi)
	}
	for _, c := range multi {
		if tc, ok := c.toolCall(); ok {
			return tc, true
		}
	}
	return domain.ToolCall{}, false
}

func (c contentCall) toolCall() (domain.ToolCall, bool) {
	if c.Name == "" {
		return domain.ToolCall{}, false
	}
	raw := c.Arguments
	if len(raw) == 0 {
		raw = c.Parameters
	}
	if len(raw) == 0 {
		return domain.ToolCall{}, false
	}

	tc := domain.ToolCall{
		ID:           "call_" + uuid.NewString(),
		Name:         normalizeToolName(c.Name),
		RawArguments: string(raw),
	}
	// Some models double-encode the arguments as a JSON string.
	var s string
	if json.Unmarshal(raw, &s) == nil {
		tc.RawArguments = s
	}
	tc.Arguments = decodeObject(tc.RawArguments)
	return tc, true
}

// decodeObject strictly decodes a JSON object, returning nil for anything else.
func decodeObject(raw string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		return nil
	}
	return m
}

// normalizeToolName maps common model-generated tool name variations to the
// registered names. Models often drop underscores or use hyphens.
func normalizeToolName(name string) string {
	aliases := map[string]string{
		"readfile":         "read_file",
		"read-file":        "read_file",
		"writefile":        "write_file",
		"write-file":       "write_file",
		"listfiles":        "list_files",
		"list-files":       "list_files",
		"requestapproval":  "request_approval",
		"request-approval": "request_approval",
	}
	if mapped, ok := aliases[strings.ToLower(name)]; ok {
		return mapped
	}
	return name
}

// stripRolePrefix removes role-name prefixes that some models leak into their
// content: "assistant\nHello" → "Hello", "Assistant: Hello" → "Hello".
func stripRolePrefix(content string) string {
	prefixes := []string{
		"assistant\n",
		"Assistant\n",
		"assistant:\n",
		"Assistant:\n",
		"assistant: ",
		"Assistant: ",
	}
	trimmed := content
	for _, p := range prefixes {
		if strings.HasPrefix(trimmed, p) {
			trimmed = strings.TrimSpace(trimmed[len(p):])
			break
		}
	}
	return trimmed
}

// sanitizeJSONEscapes fixes invalid JSON escape sequences produced by some LLMs.
// Valid JSON escapes: \", \\, \/, \b, \f, \n, \r, \t, \uXXXX.
// Invalid ones (e.g. \% or \Y) are corrected by dropping the backslash.
func sanitizeJSONEscapes(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '"' && (i == 0 || s[i-1] != '\\') {
			inString = !inString
			buf.WriteByte(ch)
			continue
		}
		if inString && ch == '\\' && i+1 < len(s) {
			next := s[i+1]
			switch next {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				buf.WriteByte(ch)
			default:
				continue
			}
		} else {
			buf.WriteByte(ch)
		}
	}
	return buf.String()
}
