package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON recovers a JSON object from a model response. Providers
// frequently wrap JSON in markdown fences or lead with prose, so a direct
// unmarshal is tried first and progressively looser recovery passes after.
func ExtractJSON(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)

	var result map[string]any
	if err := json.Unmarshal([]byte(trimmed), &result); err == nil {
		return result, nil
	}

	// Recovery pass 1: fenced code block
	if fenced := extractFenced(trimmed); fenced != "" {
		if err := json.Unmarshal([]byte(fenced), &result); err == nil {
			return result, nil
		}
	}

	// Recovery pass 2: first balanced object in the text
	if candidate := extractBalancedObject(trimmed); candidate != "" {
		if err := json.Unmarshal([]byte(candidate), &result); err == nil {
			return result, nil
		}
	}

	return nil, fmt.Errorf("no JSON object found in response")
}

// extractFenced returns the contents of the first ```-fenced block,
// stripping an optional language tag.
func extractFenced(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return ""
	}
	rest := text[start+3:]
	if newline := strings.Index(rest, "\n"); newline >= 0 {
		// Drop the language tag line ("json", "JSON", or empty)
		rest = rest[newline+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// extractBalancedObject scans for the first '{' and returns the substring
// through its matching close brace, respecting strings and escapes.
func extractBalancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
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
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}
