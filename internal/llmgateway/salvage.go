// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llmgateway

import (
	"encoding/json"
	"strings"
)

// salvageJSON implements the salvage order from spec §4.1: (a) raw parse;
// (b) strip a single fenced code block; (c) find the largest balanced
// '{...}' or '[...]' substring. It returns the raw JSON text that parsed
// successfully, or false if none of the three strategies produced valid
// JSON.
func salvageJSON(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if isValidJSON(trimmed) {
		return trimmed, true
	}

	if fenced, ok := stripFencedBlock(trimmed); ok && isValidJSON(fenced) {
		return fenced, true
	}

	if balanced, ok := largestBalanced(trimmed); ok && isValidJSON(balanced) {
		return balanced, true
	}

	return "", false
}

func isValidJSON(s string) bool {
	if s == "" {
		return false
	}
	var v any
	return json.Unmarshal([]byte(s), &v) == nil
}

// stripFencedBlock extracts the content of the first ``` fenced block,
// stripping an optional language tag on the opening fence line.
func stripFencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// largestBalanced scans for the largest substring starting at '{' or '['
// and ending at its matching closing brace/bracket, tracking nesting depth
// and skipping over quoted string contents so braces inside strings do not
// confuse the scan.
func largestBalanced(s string) (string, bool) {
	best := ""
	for i, c := range s {
		if c != '{' && c != '[' {
			continue
		}
		open, close := byte(c), closingFor(byte(c))
		if end, ok := matchBrace(s, i, open, close); ok {
			candidate := s[i : end+1]
			if len(candidate) > len(best) {
				best = candidate
			}
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

func closingFor(open byte) byte {
	if open == '{' {
		return '}'
	}
	return ']'
}

func matchBrace(s string, start int, open, close byte) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
