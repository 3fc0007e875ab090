package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractMentions_DistinctInOrder(t *testing.T) {
	req := require.New(t)

	mentions := ExtractMentions("hey @alice and @bob_42, did @alice see this?")
	req.Equal([]string{"alice", "bob_42"}, mentions)
}

func TestExtractMentions_NoMentions(t *testing.T) {
	req := require.New(t)

	req.Empty(ExtractMentions("just a plain message"))
	req.Empty(ExtractMentions(""))
}

func TestExtractMentions_ExcludesAssistant(t *testing.T) {
	req := require.New(t)

	mentions := ExtractMentions("@bot explain this to @carol")
	req.Equal([]string{"carol"}, mentions)
}

func TestIsAssistantPrompt(t *testing.T) {
	req := require.New(t)

	prompt, ok := IsAssistantPrompt("@bot what is the pythagorean theorem?")
	req.True(ok)
	req.Equal("what is the pythagorean theorem?", prompt)

	_, ok = IsAssistantPrompt("tell @bot something")
	req.False(ok)

	_, ok = IsAssistantPrompt("@botanical gardens are nice")
	req.False(ok)

	_, ok = IsAssistantPrompt("@bot")
	req.False(ok)
}

func TestHasAttachment(t *testing.T) {
	req := require.New(t)

	m := Message{Content: "plain"}
	req.False(m.HasAttachment())

	m.Attachment.URL = "/files/abc.png"
	req.True(m.HasAttachment())
}
