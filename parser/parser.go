package parser

import (
	"encoding/json"
	"errors"
	"strings"
)

// VerdictResult is the JSON object the moderation prompt asks for.
type VerdictResult struct {
	IsValid *bool  `json:"is_valid"`
	Reason  string `json:"reason"`
}

// ExtractJSONFromMarkdown strips code-fence markup around a JSON object.
func ExtractJSONFromMarkdown(response string) string {
	const fence = "```"

	startIdx := strings.Index(response, fence)
	if startIdx == -1 {
		// No code block found, try to find JSON object directly
		startIdx = strings.Index(response, "{")
		if startIdx == -1 {
			return strings.TrimSpace(response)
		}
		endIdx := strings.LastIndex(response, "}")
		if endIdx < startIdx {
			return strings.TrimSpace(response)
		}
		return strings.TrimSpace(response[startIdx : endIdx+1])
	}

	// Find the end of the first code block
	endIdx := strings.Index(response[startIdx+len(fence):], fence)
	if endIdx == -1 {
		// Unterminated fence, drop the opening marker only
		return strings.TrimSpace(stripLanguageTag(response[startIdx+len(fence):]))
	}
	endIdx += startIdx + len(fence)

	return strings.TrimSpace(stripLanguageTag(response[startIdx+len(fence) : endIdx]))
}

// stripLanguageTag removes a leading "json" language identifier.
func stripLanguageTag(content string) string {
	trimmed := strings.TrimLeft(content, " \t\r\n")
	if strings.HasPrefix(strings.ToLower(trimmed), "json") {
		return trimmed[len("json"):]
	}
	return content
}

// ParseVerdict parses a moderation response.
func ParseVerdict(response string) (*VerdictResult, error) {
	jsonContent := ExtractJSONFromMarkdown(strings.TrimSpace(response))

	var result VerdictResult
	if err := json.Unmarshal([]byte(jsonContent), &result); err != nil {
		return nil, errors.New("failed to parse JSON response: " + err.Error())
	}
	if result.IsValid == nil {
		return nil, errors.New("is_valid is required")
	}
	return &result, nil
}
