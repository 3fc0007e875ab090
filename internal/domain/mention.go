package domain

import (
	"regexp"
	"strings"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// assistantMention is the token that routes a message to the AI study
// assistant.
const assistantMention = "@bot"

// ExtractMentions returns the distinct usernames mentioned in text, in order
// of first appearance. The assistant token is a routing directive, not a
// user mention, and is excluded.
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var mentions []string
	for _, m := range matches {
		name := m[1]
		if strings.EqualFold("@"+name, assistantMention) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		mentions = append(mentions, name)
	}
	return mentions
}

// IsAssistantPrompt reports whether text is addressed to the AI assistant
// and returns the prompt with the token stripped.
func IsAssistantPrompt(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < len(assistantMention) {
		return "", false
	}
	if !strings.EqualFold(trimmed[:len(assistantMention)], assistantMention) {
		return "", false
	}
	rest := trimmed[len(assistantMention):]
	if !strings.HasPrefix(rest, " ") {
		// "@bottle" is a mention of the user bottle, not an assistant call.
		return "", false
	}
	prompt := strings.TrimSpace(rest)
	if prompt == "" {
		return "", false
	}
	return prompt, true
}
