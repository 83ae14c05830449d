package sink

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText_EmptyInput(t *testing.T) {
	assert.Equal(t, "", PlainText("", 0))
	assert.Equal(t, "", PlainText("  \n ", 0))
}

func TestPlainText_StripsFormatting(t *testing.T) {
	assert.Equal(t, "bold and code", PlainText("**bold** and `code`", 0))
}

func TestPlainText_CollapsesBlocks(t *testing.T) {
	input := "# Title\n\n- one\n- two\n\n```go\nfmt.Println(\"hi\")\n```"
	result := PlainText(input, 0)

	assert.NotContains(t, result, "\n")
	assert.Contains(t, result, "Title")
	assert.Contains(t, result, "one two")
	assert.Contains(t, result, `fmt.Println("hi")`)
}

func TestPlainText_LinkKeepsText(t *testing.T) {
	assert.Equal(t, "see the docs", PlainText("see [the docs](https://example.com)", 0))
}

func TestPlainText_SanitizesScript(t *testing.T) {
	result := PlainText(`hello <script>alert("xss")</script>`, 0)
	assert.NotContains(t, result, "<script>")
	assert.Contains(t, result, "hello")
}

func TestPlainText_UnescapesEntities(t *testing.T) {
	assert.Equal(t, "a < b & c", PlainText("a < b & c", 0))
}

func TestPlainText_Limit(t *testing.T) {
	result := PlainText(strings.Repeat("word ", 40), 20)
	assert.LessOrEqual(t, len([]rune(result)), 21)
	assert.True(t, strings.HasSuffix(result, "…"))

	assert.Equal(t, "short", PlainText("short", 20))
}
