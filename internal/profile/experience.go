package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"
)

// Experience 是资料中工作经历的唯一结构化形态。
type Experience struct {
	Summary           string      `json:"summary,omitempty"`
	YearsOfExperience int         `json:"yearsOfExperience,omitempty"`
	CurrentRole       string      `json:"currentRole,omitempty"`
	Positions         []Position  `json:"positions"`
	Education         []Education `json:"education"`
}

// Position 描述一段任职经历。
type Position struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Description string `json:"description,omitempty"`
}

// Education 描述一段教育经历。
type Education struct {
	School string `json:"school"`
	Degree string `json:"degree,omitempty"`
	Year   string `json:"year,omitempty"`
}

func (e Experience) normalized() Experience {
	if e.Positions == nil {
		e.Positions = []Position{}
	}
	if e.Education == nil {
		e.Education = []Education{}
	}
	return e
}

// DecodeExperience 读取数据库中的 experience 列。
// 历史数据可能是对象、被序列化成字符串的对象、纯文本字符串、null 或空值，统一解码为 Experience。
func DecodeExperience(raw []byte) (Experience, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Experience{}.normalized(), nil
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return Experience{}, fmt.Errorf("decode experience string: %w", err)
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			return Experience{}.normalized(), nil
		}
		if !strings.HasPrefix(inner, "{") {
			return Experience{Summary: inner}.normalized(), nil
		}
		raw = []byte(inner)
	}

	var exp Experience
	if err := json.Unmarshal(raw, &exp); err != nil {
		return Experience{}, fmt.Errorf("decode experience: %w", err)
	}
	return exp.normalized(), nil
}

// EncodeExperience 总是写入 JSON 对象。
func EncodeExperience(exp Experience) (datatypes.JSON, error) {
	data, err := json.Marshal(exp.normalized())
	if err != nil {
		return nil, fmt.Errorf("encode experience: %w", err)
	}
	return datatypes.JSON(data), nil
}

// Text renders the experience as plain lines for prompts.
func (e Experience) Text() string {
	var b strings.Builder
	if e.Summary != "" {
		b.WriteString(e.Summary)
		b.WriteString("\n")
	}
	if e.CurrentRole != "" {
		fmt.Fprintf(&b, "Current role: %s\n", e.CurrentRole)
	}
	if e.YearsOfExperience > 0 {
		fmt.Fprintf(&b, "Years of experience: %d\n", e.YearsOfExperience)
	}
	for _, p := range e.Positions {
		fmt.Fprintf(&b, "- %s at %s", p.Title, p.Company)
		if p.StartDate != "" || p.EndDate != "" {
			fmt.Fprintf(&b, " (%s - %s)", p.StartDate, orPresent(p.EndDate))
		}
		if p.Description != "" {
			fmt.Fprintf(&b, ": %s", p.Description)
		}
		b.WriteString("\n")
	}
	for _, ed := range e.Education {
		fmt.Fprintf(&b, "- %s", ed.School)
		if ed.Degree != "" {
			fmt.Fprintf(&b, ", %s", ed.Degree)
		}
		if ed.Year != "" {
			fmt.Fprintf(&b, " (%s)", ed.Year)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func orPresent(s string) string {
	if s == "" {
		return "present"
	}
	return s
}
