package pageparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText_RemovesScriptStyle(t *testing.T) {
	html := `
<body>
    <div id="main">Hello</div>
    <script>alert("hi")</script>
    <style>.x {}</style>
</body>`

	out := ExtractText(html, nil)

	assert.Equal(t, "Hello", out)
}

func TestExtractText_RemovesComments(t *testing.T) {
	html := `
<body>
    <!-- comment -->
    <div>Text</div>
</body>`

	out := ExtractText(html, nil)

	assert.NotContains(t, out, "comment")
	assert.Equal(t, "Text", out)
}

func TestExtractText_IgnoresHead(t *testing.T) {
	html := `
<html>
<head>
    <title>Page title</title>
    <meta charset="utf-8">
</head>
<body>
    <p>Hi</p>
</body>
</html>`

	assert.Equal(t, "Hi", ExtractText(html, nil))
}

func TestExtractText_BlocksBecomeLines(t *testing.T) {
	html := `<body><h1>Title</h1><p>First   <b>bold</b>
	paragraph.</p><ul><li>one</li><li>two</li></ul><span>tail</span></body>`

	out := ExtractText(html, nil)

	assert.Equal(t, "Title\nFirst bold paragraph.\none\ntwo\ntail", out)
}

func TestExtractText_Truncation(t *testing.T) {
	var big strings.Builder
	big.WriteString("<body>")
	for i := 0; i < 2000; i++ {
		big.WriteString("<div>test</div>")
	}
	big.WriteString("</body>")

	cfg := DefaultCleanConfig
	cfg.MaxOutputSize = 100
	out := ExtractText(big.String(), &cfg)

	assert.Len(t, out, 100)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hello", Truncate("hello", 0))
}
