package pdf

import (
	"bytes"
	"fmt"
	"html/template"
)

// pageTemplate 把文档正文包进 A4 打印页面。正文在入库前已经过清洗。
var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        @page { size: A4; margin: 18mm 16mm; }
        body {
            margin: 0;
            font-family: 'Helvetica Neue', Arial, sans-serif;
            font-size: 10.5pt;
            line-height: 1.45;
            color: #1f2328;
        }
        h1 { font-size: 20pt; margin: 0 0 6pt; }
        h2 {
            font-size: 12pt;
            margin: 14pt 0 4pt;
            padding-bottom: 2pt;
            border-bottom: 1px solid #d0d7de;
            text-transform: uppercase;
            letter-spacing: 0.04em;
        }
        h3 { font-size: 11pt; margin: 8pt 0 2pt; }
        ul { margin: 2pt 0 6pt 14pt; padding: 0; }
        li { margin-bottom: 2pt; }
        p { margin: 0 0 6pt; }
        a { color: inherit; text-decoration: none; }
    </style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// Page 是打印页面的数据。
type Page struct {
	Title string
	Body  template.HTML
}

// BuildPage 渲染打印页面。body 必须是已清洗的 HTML。
func BuildPage(title, body string) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, Page{Title: title, Body: template.HTML(body)}); err != nil {
		return "", fmt.Errorf("render page template: %w", err)
	}
	return buf.String(), nil
}
