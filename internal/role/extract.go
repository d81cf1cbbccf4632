package role

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"rea/internal/domain"
)

// ExtractJSON decodes the JSON object inside the first fenced code block of
// text that holds one. Fences tagged json and bare fences are both accepted;
// blocks without a valid object are skipped.
func ExtractJSON(text string) (map[string]any, error) {
	var firstErr error
	rest := text
	for {
		start := strings.Index(rest, "```")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+3:], "```")
		if end < 0 {
			if firstErr == nil {
				firstErr = errors.New("unterminated code block")
			}
			break
		}
		block := rest[start+3 : start+3+end]
		rest = rest[start+3+end+3:]

		out, err := decodeBlock(block)
		if err == nil {
			return out, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = errors.New("no JSON code block found")
	}
	return nil, firstErr
}

func decodeBlock(block string) (map[string]any, error) {
	open, closing := strings.IndexByte(block, '{'), strings.LastIndexByte(block, '}')
	if open < 0 || closing < open {
		return nil, errors.New("code block does not contain a JSON object")
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(block[open:closing+1]), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return out, nil
}

// RoleValue reads the role decision from a classification object. The value
// may be a string, a list of strings, or a comma or slash separated list.
func RoleValue(obj map[string]any) ([]string, bool) {
	var raw any
	for _, key := range []string{"Role", "role", "ROLE"} {
		if v, ok := obj[key]; ok {
			raw = v
			break
		}
	}
	var names []string
	switch v := raw.(type) {
	case string:
		names = splitRoles(v)
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				names = append(names, splitRoles(s)...)
			}
		}
	default:
		return nil, false
	}
	return names, len(names) > 0
}

func splitRoles(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '/' })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ResolvePriority maps role names to roles and returns the one with the
// highest priority (PeerReviewer > ScrumLead > ProductOwner). Any unknown
// name fails the whole decision.
func ResolvePriority(names []string) (domain.Role, error) {
	if len(names) == 0 {
		return "", &domain.UnknownRoleError{Value: ""}
	}
	var best domain.Role
	for _, n := range names {
		r, ok := domain.ParseRole(n)
		if !ok {
			return "", &domain.UnknownRoleError{Value: n}
		}
		if r.Priority() > best.Priority() {
			best = r
		}
	}
	return best, nil
}
