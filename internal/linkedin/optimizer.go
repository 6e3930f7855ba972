// Package linkedin 针对目标职位给出 LinkedIn 资料的优化建议。
package linkedin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"jobgenie/internal/llm"
)

// ErrEmptyProfile 表示所有栏目都为空。
var ErrEmptyProfile = errors.New("linkedin: profile sections are empty")

// Sections 是用户粘贴的 LinkedIn 资料各栏目。
type Sections struct {
	Headline   string   `json:"headline"`
	About      string   `json:"about"`
	Experience string   `json:"experience"`
	Skills     []string `json:"skills"`
}

func (s Sections) empty() bool {
	return strings.TrimSpace(s.Headline+s.About+s.Experience) == "" && len(s.Skills) == 0
}

// Suggestion 是一条具体修改建议。
type Suggestion struct {
	Section   string `json:"section"`
	Current   string `json:"current"`
	Suggested string `json:"suggested"`
	Reason    string `json:"reason"`
}

// Result 是优化后的资料。
type Result struct {
	Headline    string       `json:"headline"`
	About       string       `json:"about"`
	Skills      []string     `json:"skills"`
	Suggestions []Suggestion `json:"suggestions"`
}

const resultSchema = `{
  "type": "object",
  "required": ["headline", "about", "skills", "suggestions"],
  "properties": {
    "headline": {"type": "string", "maxLength": 220},
    "about": {"type": "string"},
    "skills": {"type": "array", "items": {"type": "string"}},
    "suggestions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["section", "suggested"],
        "properties": {
          "section": {"type": "string"},
          "current": {"type": "string"},
          "suggested": {"type": "string"},
          "reason": {"type": "string"}
        }
      }
    }
  }
}`

var promptTemplate = template.Must(template.New("linkedin").Parse(`You are a LinkedIn profile coach.
Improve the profile below{{if .Role}} for someone targeting the role "{{.Role}}"{{end}}.

Headline: {{.Sections.Headline}}
About:
{{.Sections.About}}
Experience:
{{.Sections.Experience}}
Skills: {{range $i, $s := .Sections.Skills}}{{if $i}}, {{end}}{{$s}}{{end}}

Rules:
- Keep every claim grounded in the text above.
- The headline must be at most 220 characters.
- List up to 15 skills, most relevant first.
- Give 3 to 6 suggestions, each naming the section it applies to.
Return a single JSON object:
{"headline": string, "about": string, "skills": [string], "suggestions": [{"section": string, "current": string, "suggested": string, "reason": string}]}
`))

// Optimizer 请求模型优化资料。
type Optimizer struct {
	client llm.Client
}

// NewOptimizer 创建优化器。
func NewOptimizer(client llm.Client) *Optimizer {
	return &Optimizer{client: client}
}

// Optimize 返回改写后的标题、简介、技能列表及建议。
// 模型输出结构不符时返回包装了 llm.ErrMalformedResponse 的错误。
func (o *Optimizer) Optimize(ctx context.Context, sections Sections, targetRole string) (*Result, error) {
	if sections.empty() {
		return nil, ErrEmptyProfile
	}

	var prompt strings.Builder
	err := promptTemplate.Execute(&prompt, struct {
		Sections Sections
		Role     string
	}{sections, strings.TrimSpace(targetRole)})
	if err != nil {
		return nil, fmt.Errorf("render linkedin prompt: %w", err)
	}

	raw, err := o.client.Generate(ctx, prompt.String(), llm.Options{JSON: true, Temperature: 0.5})
	if err != nil {
		return nil, fmt.Errorf("optimize linkedin profile: %w", err)
	}

	var res Result
	if err := llm.DecodeJSON(raw, resultSchema, &res); err != nil {
		return nil, err
	}
	if len(res.Skills) > 15 {
		res.Skills = res.Skills[:15]
	}
	return &res, nil
}
