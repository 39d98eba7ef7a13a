package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CleanMarkdownWrapper strips a markdown code fence from around content.
// Models frequently wrap JSON replies in ```json ... ``` fences even when
// told not to; the inner text is returned trimmed. Content without a fence
// is returned trimmed but otherwise unchanged.
func CleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if !strings.HasPrefix(content, "```") {
		return content
	}

	// Drop the opening fence and its optional language tag.
	content = strings.TrimPrefix(content, "```")
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		tag := strings.TrimSpace(content[:idx])
		if tag == "" || isLanguageTag(tag) {
			content = content[idx+1:]
		}
	}

	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// DecodeJSONObject parses a JSON object from an LLM completion into v,
// stripping any markdown fence first. When the completion embeds the object
// in surrounding prose, the outermost braces are located and decoded.
func DecodeJSONObject(content string, v any) error {
	cleaned := CleanMarkdownWrapper(content)

	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object found in response")
	}

	if err := json.Unmarshal([]byte(cleaned[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}
