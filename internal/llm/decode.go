package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformedResponse 表示模型输出不是调用方要求的 JSON。
var ErrMalformedResponse = errors.New("llm: malformed response")

// CleanJSONBlock 去掉 markdown 代码块标记以及最外层 JSON 之外的多余文字。
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.Index(text, "\n"); idx >= 0 {
			first := text[:idx]
			if len(first) < 20 && !strings.ContainsAny(first, " {[") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return text
	}
	return text[start : end+1]
}

// DecodeJSON 清洗 raw，有 schema 时先校验，再解码到 v。所有失败都包装 ErrMalformedResponse。
func DecodeJSON(raw, schema string, v any) error {
	doc := CleanJSONBlock(raw)
	if doc == "" {
		return fmt.Errorf("%w: empty output", ErrMalformedResponse)
	}

	if schema != "" {
		result, err := gojsonschema.Validate(
			gojsonschema.NewStringLoader(schema),
			gojsonschema.NewStringLoader(doc),
		)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if !result.Valid() {
			msgs := make([]string, 0, len(result.Errors()))
			for _, desc := range result.Errors() {
				msgs = append(msgs, desc.String())
			}
			return fmt.Errorf("%w: %s", ErrMalformedResponse, strings.Join(msgs, "; "))
		}
	}

	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
