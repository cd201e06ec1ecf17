package router

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/resumekit/airouter/internal/llm"
)

// extractStrategy is a named attempt at recovering JSON from model output.
// Strategies run in order; the first one producing valid JSON wins.
type extractStrategy struct {
	name string
	fn   func(raw string) (string, bool)
}

var extractStrategies = []extractStrategy{
	{"direct", extractDirect},
	{"fenced-block", extractFenced},
	{"balanced-braces", extractBalanced},
	{"repair", extractRepair},
}

// ExtractJSON recovers a JSON document from raw model output. It returns
// the cleaned JSON text and the name of the strategy that produced it.
// When every strategy fails the error is a *llm.StructuredParseError
// carrying the raw text so callers can log or surface it.
func ExtractJSON(raw string) (string, string, error) {
	var lastErr error
	for _, s := range extractStrategies {
		candidate, ok := s.fn(raw)
		if !ok {
			continue
		}
		if err := validateJSON(candidate); err != nil {
			lastErr = err
			continue
		}
		return candidate, s.name, nil
	}
	return "", "", &llm.StructuredParseError{Raw: raw, Err: lastErr}
}

// ExtractInto unmarshals the recovered JSON into dst.
func ExtractInto(raw string, dst any) error {
	cleaned, _, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return &llm.StructuredParseError{Raw: raw, Err: err}
	}
	return nil
}

func validateJSON(s string) error {
	var v any
	return json.Unmarshal([]byte(s), &v)
}

func extractDirect(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// extractFenced pulls the body of the first ```json or ``` code fence.
func extractFenced(raw string) (string, bool) {
	start := strings.Index(raw, "```")
	if start < 0 {
		return "", false
	}
	rest := raw[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		tag := strings.TrimSpace(rest[:nl])
		if tag == "" || strings.EqualFold(tag, "json") {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	body := strings.TrimSpace(rest[:end])
	if body == "" {
		return "", false
	}
	return body, true
}

// extractBalanced scans for the first top-level {...} or [...] span,
// tracking string literals and escapes so braces inside values do not
// terminate the scan early.
func extractBalanced(raw string) (string, bool) {
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return "", false
	}
	open := raw[start]
	var closer byte = '}'
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

func extractRepair(raw string) (string, bool) {
	// Only attempt repair when the output holds something JSON-shaped;
	// jsonrepair would happily quote plain prose into a string literal.
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return "", false
	}
	// Repair works best once surrounding prose is stripped.
	candidate := raw[start:]
	if span, ok := extractBalanced(raw); ok {
		candidate = span
	}
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return "", false
	}
	return repaired, true
}
