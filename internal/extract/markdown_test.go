package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownHeadingsAndLists(t *testing.T) {
	t.Parallel()

	content := "## OpenAI ships a new model\n" +
		"The company released a model that is much faster than its predecessor on every benchmark [1].\n\n" +
		"- **Chip news**: Nvidia announced a new accelerator aimed at data centers and AI training.\n" +
		"- **Rates**: central banks held rates steady, see [the report](https://example.com/rates).\n"

	resp := chat(content)
	resp.Citations = []string{"https://example.com/openai"}

	items := NewMarkdown(nil).Extract(resp)
	require.Len(t, items, 3)

	assert.Equal(t, "OpenAI ships a new model", items[0].Title)
	assert.Contains(t, items[0].Summary, "much faster than its predecessor")
	assert.Equal(t, "https://example.com/openai", items[0].URL)

	assert.Equal(t, "Chip news", items[1].Title)
	assert.Equal(t, "Nvidia announced a new accelerator aimed at data centers and AI training.", items[1].Summary)
	assert.Empty(t, items[1].URL)

	assert.Equal(t, "Rates", items[2].Title)
	assert.Equal(t, "https://example.com/rates", items[2].URL)
}

func TestMarkdownBoldParagraphOpensItem(t *testing.T) {
	t.Parallel()

	summary := "A summary line that is long enough to exceed fifty characters easily."
	items := NewMarkdown(nil).Extract(chat("**Title**\n\nhttp://example.com\n\n" + summary + "\n"))

	require.Len(t, items, 1)
	assert.Equal(t, "Title", items[0].Title)
	assert.Equal(t, "http://example.com", items[0].URL)
	assert.Equal(t, summary, items[0].Summary)
}

func TestMarkdownNoContent(t *testing.T) {
	t.Parallel()

	assert.Empty(t, NewMarkdown(nil).Extract(nil))
	assert.Empty(t, NewMarkdown(nil).Extract(chat("")))
}
