package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const newsletter = `
<html>
  <head><title>Weekly</title><style>p { color: red; }</style></head>
  <body>
    <h1>Release notes</h1>
    <p>Version   2.0 is   out.</p>
    <p>Read the <a href="https://example.org/blog">announcement</a>.</p>
    <script>track();</script>
  </body>
</html>`

func TestLooksLikeHTML(t *testing.T) {
	t.Parallel()

	require.True(t, LooksLikeHTML(newsletter))
	require.True(t, LooksLikeHTML("hello<br>world"))
	require.False(t, LooksLikeHTML("plain text with a < sign"))
}

func TestPlain(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Lunch at noon?", Plain("  Lunch   at noon?  \r\n"))

	converted := Plain(newsletter)
	require.Contains(t, converted, "# Release notes")
	require.Contains(t, converted, "[announcement](https://example.org/blog)")
	require.NotContains(t, converted, "<p>")
}

func TestPlainText(t *testing.T) {
	t.Parallel()

	text := PlainText(newsletter)

	require.Contains(t, text, "Release notes")
	require.Contains(t, text, "Version 2.0 is out.")
	require.Contains(t, text, "announcement (https://example.org/blog)")
	require.NotContains(t, text, "track()")
	require.NotContains(t, text, "color: red")
	require.NotContains(t, text, "Weekly")
}

func TestMarkdown(t *testing.T) {
	t.Parallel()

	md := Markdown(newsletter)

	require.Contains(t, md, "# Release notes")
	require.Contains(t, md, "[announcement](https://example.org/blog)")
	require.NotContains(t, md, "track()")
}

func TestCollapse(t *testing.T) {
	t.Parallel()

	in := "  a   b \r\n\n\n\n\tc  "
	require.Equal(t, "a b\n\nc", Collapse(in))
	require.Empty(t, Collapse(strings.Repeat(" \n", 10)))
}
