package utils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject returns the first balanced {...} block in text.
// LLMs routinely wrap JSON in prose or markdown fences, so strict
// unmarshalling of the raw response fails more often than not.
func ExtractJSONObject(text string) (string, bool) {
	return extractBalanced(text, '{', '}')
}

// ExtractJSONArray returns the first balanced [...] block in text.
func ExtractJSONArray(text string) (string, bool) {
	return extractBalanced(text, '[', ']')
}

func extractBalanced(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// delimiters inside strings don't count
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// UnmarshalLenient parses JSON from raw model output into v. It tries the
// response as-is first, then falls back to the first balanced object or
// array found in the text.
func UnmarshalLenient(text string, v interface{}) error {
	trimmed := strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	if candidate, ok := ExtractJSONObject(trimmed); ok {
		if err := json.Unmarshal([]byte(candidate), v); err == nil {
			return nil
		}
	}
	if candidate, ok := ExtractJSONArray(trimmed); ok {
		if err := json.Unmarshal([]byte(candidate), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no parseable JSON in response: %q", truncateForError(trimmed))
}

func truncateForError(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
