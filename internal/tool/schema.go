package tool

import (
	"fmt"
	"sort"
	"strings"
)

// ArgumentError lists every way a set of arguments violates a tool schema.
type ArgumentError struct {
	Tool     string
	Problems []string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

// ValidateArgs checks args against a JSON Schema object of the shape produced
// by ToolParameters: required keys, primitive types and enums. Unknown keys
// are rejected so typos surface to the model instead of being ignored.
func ValidateArgs(toolName string, schema map[string]any, args map[string]any) error {
	if schema == nil {
		return nil
	}
	props, _ := schema["properties"].(map[string]any)

	var problems []string
	for _, key := range requiredKeys(schema) {
		if v, ok := args[key]; !ok || v == nil {
			problems = append(problems, fmt.Sprintf("missing required argument %q", key))
		}
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := args[key]
		prop, known := props[key].(map[string]any)
		if !known {
			if len(props) > 0 || schema["additionalProperties"] == false {
				problems = append(problems, fmt.Sprintf("unexpected argument %q", key))
			}
			continue
		}
		if val == nil {
			continue
		}
		typ, _ := prop["type"].(string)
		if typ != "" && !matchesType(typ, val) {
			problems = append(problems, fmt.Sprintf("argument %q must be %s, got %s", key, typ, jsonType(val)))
			continue
		}
		if enum := stringList(prop["enum"]); len(enum) > 0 {
			s, _ := val.(string)
			if !contains(enum, s) {
				problems = append(problems, fmt.Sprintf("argument %q must be one of %s", key, strings.Join(enum, ", ")))
			}
		}
	}

	if len(problems) > 0 {
		return &ArgumentError{Tool: toolName, Problems: problems}
	}
	return nil
}

func requiredKeys(schema map[string]any) []string {
	return stringList(schema["required"])
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func matchesType(typ string, v any) bool {
	switch typ {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer":
		switch n := v.(type) {
		case float64:
			return n == float64(int64(n))
		case int, int64:
			return true
		}
		return false
	case "number":
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	}
	return true
}

func jsonType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
