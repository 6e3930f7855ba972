package documents

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

const excerptRunes = 160

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.RequireNoFollowOnLinks(false)
	return p
}

// Sanitize 去掉脚本、事件属性以及编辑器和打印模板不支持的标签。
func Sanitize(html string) string {
	return strings.TrimSpace(policy.Sanitize(html))
}

// PlainText 返回 HTML 片段的可见文本，空白已折叠。
func PlainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// HeadingTitle 返回第一个 h1（或 h2）的文本，模型未给标题时使用。
func HeadingTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	heading := doc.Find("h1").First()
	if heading.Length() == 0 {
		heading = doc.Find("h2").First()
	}
	return strings.Join(strings.Fields(heading.Text()), " ")
}

// Excerpt 是列表页用的纯文本摘要。
func Excerpt(html string) string {
	text := PlainText(html)
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:excerptRunes])) + "…"
}
