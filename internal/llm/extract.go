package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnparseable reports that no extraction strategy produced valid JSON.
var ErrUnparseable = errors.New("no JSON object found in model output")

// ExtractJSON unmarshals a JSON object out of raw model output. Models wrap
// JSON in prose, fenced code blocks, or typographic quotes often enough that
// a plain unmarshal is not reliable, so strategies are tried in order from
// strictest to most permissive and the first success wins.
func ExtractJSON(raw string, v any) error {
	fenced := stripFence(raw)
	candidates := []string{
		raw,
		normalizeQuotes(raw),
		fenced,
		normalizeQuotes(fenced),
		braceSpan(fenced),
		normalizeQuotes(braceSpan(fenced)),
		braceSpan(raw),
		normalizeQuotes(braceSpan(raw)),
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if err := json.Unmarshal([]byte(c), v); err == nil {
			return nil
		}
	}
	return ErrUnparseable
}

var quoteReplacer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
)

func normalizeQuotes(s string) string { return quoteReplacer.Replace(s) }

// stripFence extracts the body of the first fenced code block, tolerating a
// language tag after the opening fence.
func stripFence(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return ""
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// braceSpan returns the first balanced top-level {...} span, skipping braces
// inside string literals.
func braceSpan(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
