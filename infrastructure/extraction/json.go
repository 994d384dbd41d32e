package extraction

import "strings"

// extractJSON returns the first JSON object found in a model response.
// Models in JSON mode usually answer with a bare object, but some wrap it
// in a markdown fence or add a sentence around it. The empty string means
// no object was found.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if fenced, ok := fencedBlock(response); ok {
		response = fenced
	}

	start := strings.IndexByte(response, '{')
	if start == -1 {
		return ""
	}

	// Match the opening brace, ignoring braces inside string literals.
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

// fencedBlock returns the body of the first ``` fence, skipping the
// language tag on the opening line.
func fencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start == -1 {
		return "", false
	}
	body := s[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl != -1 && !strings.Contains(body[:nl], "{") {
		body = body[nl+1:]
	}
	end := strings.Index(body, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(body[:end]), true
}
