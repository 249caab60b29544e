package webagent

import (
	"encoding/json"
	"strings"

	"exo-agent/internal/domain/entity"
)

type toolCallJSON struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// ParseToolCall finds the first JSON object in reply that names a tool.
// Arguments may be an object or a string holding one.
func ParseToolCall(reply string) (entity.ToolCall, bool) {
	for start := strings.IndexByte(reply, '{'); start != -1; {
		obj := balancedObject(reply[start:])
		if obj != "" {
			var raw toolCallJSON
			if err := json.Unmarshal([]byte(obj), &raw); err == nil && strings.TrimSpace(raw.Tool) != "" {
				return entity.ToolCall{
					Name:      entity.ToolName(strings.TrimSpace(raw.Tool)),
					Arguments: normalizeArguments(raw.Arguments),
				}, true
			}
		}

		next := strings.IndexByte(reply[start+1:], '{')
		if next == -1 {
			break
		}
		start += 1 + next
	}
	return entity.ToolCall{}, false
}

// balancedObject returns the prefix of s that closes the '{' at s[0], honouring
// JSON strings. It returns "" when s ends first.
func balancedObject(s string) string {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

func normalizeArguments(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "{}"
	}
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err == nil && strings.HasPrefix(strings.TrimSpace(inner), "{") {
			return inner
		}
	}
	return trimmed
}
