package llm

import (
	"strings"
	"unicode/utf8"
)

// maxNarrativeLen bounds what is stored per frame.
const maxNarrativeLen = 1000

// cleanNarrative normalizes provider output into a single line of plain text.
func cleanNarrative(content string) string {
	content = cleanMarkdownWrapper(content)

	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "#*->• ")
		line = strings.ReplaceAll(line, "**", "")
		if line != "" {
			kept = append(kept, line)
		}
	}
	text := strings.Join(strings.Fields(strings.Join(kept, " ")), " ")

	if len(text) > maxNarrativeLen {
		cut := maxNarrativeLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

// cleanMarkdownWrapper removes a surrounding code fence.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		// Drop a language tag such as ```text.
		if !strings.ContainsAny(content[:nl], " \t") {
			content = content[nl+1:]
		}
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
