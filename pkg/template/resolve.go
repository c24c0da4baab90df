package template

import (
	"fmt"
	"regexp"

	"github.com/entfalten/entfalten/pkg/api"
)

// placeholderPattern matches {{key}} placeholders. Keys are restricted
// to word characters, dots, and dashes; surrounding whitespace inside
// the braces is tolerated.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([\w.-]+)\s*\}\}`)

// Resolve substitutes named variables into message contents. It is a
// pure function: the input slice is never mutated, roles and names pass
// through unchanged.
//
// A placeholder whose key is absent from vars resolves to the empty
// string.
func Resolve(messages []api.Message, vars map[string]any) []api.Message {
	if len(messages) == 0 {
		return nil
	}

	out := make([]api.Message, len(messages))
	for i, msg := range messages {
		out[i] = msg
		out[i].Content = Substitute(msg.Content, vars)
	}
	return out
}

// Substitute replaces every {{key}} placeholder in content with the
// stringified value of vars[key], or the empty string for missing keys.
func Substitute(content string, vars map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		val, ok := vars[key]
		if !ok {
			return ""
		}
		return stringify(val)
	})
}

// References reports whether any message content contains a placeholder
// with the given key.
func References(messages []api.Message, key string) bool {
	for _, msg := range messages {
		for _, m := range placeholderPattern.FindAllStringSubmatch(msg.Content, -1) {
			if m[1] == key {
				return true
			}
		}
	}
	return false
}

// stringify converts a variable value to its textual form. JSON-decoded
// numbers arrive as float64; integral values render without a decimal
// point.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}
