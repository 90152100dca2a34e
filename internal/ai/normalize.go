package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// wrapperKeys are envelope keys models like to wrap their output in.
var wrapperKeys = []string{"emails", "data", "results", "items"}

// Normalize extracts the JSON payload from possibly text-wrapped model
// output and flattens the envelope into one flat list of item maps.
// Syntactically broken JSON is an error; a well-formed document that
// matches no known shape yields an empty list.
func Normalize(raw string) ([]map[string]any, error) {
	payload := extractJSONPayload(raw)
	if payload == "" {
		return nil, fmt.Errorf("no json payload in model response")
	}

	var parsed any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("invalid json from model: %w", err)
	}

	for _, match := range shapeMatchers {
		if items, ok := match(parsed); ok {
			return items, nil
		}
	}
	return []map[string]any{}, nil
}

// extractJSONPayload strips code fences and slices between the first
// opening and last closing bracket, dropping any surrounding commentary.
func extractJSONPayload(raw string) string {
	s := raw
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)

	start := -1
	for i, r := range s {
		if r == '[' || r == '{' {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}
	end := strings.LastIndexAny(s, "]}")
	if end < start {
		return ""
	}
	return s[start : end+1]
}

// shapeMatcher tries to read one envelope shape; returns false on no match.
type shapeMatcher func(parsed any) ([]map[string]any, bool)

// Ordered by how often providers produce each shape. First match wins.
var shapeMatchers = []shapeMatcher{
	matchWrapperKeys,
	matchSingleObject,
	matchBareList,
	matchLoneArrayValue,
}

func matchWrapperKeys(parsed any) ([]map[string]any, bool) {
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, false
	}
	var out []map[string]any
	matched := false
	for _, key := range wrapperKeys {
		arr, ok := obj[key].([]any)
		if !ok {
			continue
		}
		matched = true
		out = append(out, itemMaps(arr)...)
	}
	if !matched {
		return nil, false
	}
	if out == nil {
		out = []map[string]any{}
	}
	return out, true
}

func matchSingleObject(parsed any) ([]map[string]any, bool) {
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, false
	}
	if _, hasID := obj["id"]; !hasID {
		return nil, false
	}
	return []map[string]any{obj}, true
}

func matchBareList(parsed any) ([]map[string]any, bool) {
	arr, ok := parsed.([]any)
	if !ok {
		return nil, false
	}
	return itemMaps(arr), true
}

// matchLoneArrayValue handles objects whose single key wraps the list under
// a name not in wrapperKeys.
func matchLoneArrayValue(parsed any) ([]map[string]any, bool) {
	obj, ok := parsed.(map[string]any)
	if !ok || len(obj) != 1 {
		return nil, false
	}
	for _, v := range obj {
		if arr, ok := v.([]any); ok {
			return itemMaps(arr), true
		}
	}
	return nil, false
}

func itemMaps(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
