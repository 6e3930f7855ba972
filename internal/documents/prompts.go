package documents

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"jobgenie/internal/database"
	"jobgenie/internal/profile"
)

var (
	//go:embed prompts/generate.tmpl
	generatePromptRaw string
	//go:embed prompts/chat.tmpl
	chatPromptRaw string

	funcs = template.FuncMap{
		"join": func(items []string) string {
			if len(items) == 0 {
				return "(not provided)"
			}
			return strings.Join(items, ", ")
		},
	}

	generateTemplate = template.Must(template.New("generate").Funcs(funcs).Parse(generatePromptRaw))
	chatTemplate     = template.Must(template.New("chat").Funcs(funcs).Parse(chatPromptRaw))
)

const generateSchema = `{
  "type": "object",
  "required": ["html"],
  "properties": {
    "title": {"type": "string"},
    "html": {"type": "string", "minLength": 1}
  }
}`

const chatSchema = `{
  "type": "object",
  "required": ["reply", "html"],
  "properties": {
    "reply": {"type": "string"},
    "html": {"type": "string"}
  }
}`

// JobContext is the target job a document is written for.
type JobContext struct {
	Title       string
	Company     string
	Location    string
	Description string
}

type generatePrompt struct {
	Type         string
	Kind         string
	DefaultTitle string
	Profile      profile.Profile
	Experience   string
	Job          JobContext
	Instructions string
}

type chatPrompt struct {
	Kind    string
	Content string
	History []ChatTurn
	Message string
}

func kindOf(docType string) string {
	if docType == database.DocumentTypeCoverLetter {
		return "cover letter"
	}
	return "resume"
}

func defaultTitle(docType string, job JobContext) string {
	name := "Resume"
	if docType == database.DocumentTypeCoverLetter {
		name = "Cover Letter"
	}
	if job.Company != "" {
		return name + " for " + job.Company
	}
	if job.Title != "" {
		return name + " for " + job.Title
	}
	return name
}

func renderGeneratePrompt(p generatePrompt) (string, error) {
	var buf bytes.Buffer
	if err := generateTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render generate prompt: %w", err)
	}
	return buf.String(), nil
}

func renderChatPrompt(p chatPrompt) (string, error) {
	var buf bytes.Buffer
	if err := chatTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render chat prompt: %w", err)
	}
	return buf.String(), nil
}
