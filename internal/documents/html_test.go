package documents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	got := Sanitize(`<html><body><h2 class="section">Skills</h2><img src=x onerror="steal()"><a href="javascript:alert(1)">x</a><ul><li>Go</li></ul></body></html>`)

	assert.Contains(t, got, `<h2 class="section">Skills</h2>`)
	assert.Contains(t, got, "<li>Go</li>")
	assert.NotContains(t, got, "onerror")
	assert.NotContains(t, got, "javascript:")
	assert.NotContains(t, got, "<body>")
}

func TestHeadingTitle(t *testing.T) {
	assert.Equal(t, "Grace Hopper", HeadingTitle("<p>intro</p><h1> Grace\n Hopper </h1>"))
	assert.Equal(t, "Summary", HeadingTitle("<h2>Summary</h2><p>x</p>"))
	assert.Equal(t, "", HeadingTitle("<p>no heading</p>"))
}

func TestExcerpt(t *testing.T) {
	long := "<p>" + strings.Repeat("word ", 100) + "</p>"
	ex := Excerpt(long)
	assert.True(t, strings.HasSuffix(ex, "…"))
	assert.LessOrEqual(t, len([]rune(ex)), excerptRunes+1)
	assert.Equal(t, "short text", Excerpt("<p>short</p> <p>text</p>"))
}
