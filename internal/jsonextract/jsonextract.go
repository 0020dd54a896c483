// Package jsonextract pulls a single JSON value out of an agent's free-form
// text response. Agents are asked to "return ONLY the JSON" but routinely
// wrap it in a markdown code fence or prepend a sentence of commentary;
// this package tolerates both before handing the result to json.Unmarshal.
package jsonextract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Object extracts a JSON object from text and unmarshals it into v. It
// tries, in order: the whole trimmed text, the contents of a ```json or
// ``` fenced block, and finally the substring between the first '{' and
// the matching last '}'. It returns an error naming which of those
// attempts were made if none parse.
func Object(text string, v interface{}) error {
	candidates := candidates(text)
	var lastErr error
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if err := json.Unmarshal([]byte(c), v); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no JSON object found in response")
	}
	return fmt.Errorf("jsonextract: %w", lastErr)
}

func candidates(text string) []string {
	trimmed := strings.TrimSpace(text)
	out := []string{trimmed}
	if fenced, ok := fencedBlock(trimmed); ok {
		out = append(out, fenced)
	}
	if braced, ok := bracedSpan(trimmed); ok {
		out = append(out, braced)
	}
	return out
}

func fencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	rest = strings.TrimPrefix(rest, "json")
	rest = strings.TrimPrefix(rest, "\n")
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func bracedSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}
