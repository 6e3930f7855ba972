// Package resources 为用户想学的技能查找并缓存视频教程。
package resources

import (
	"strings"

	"golang.org/x/text/cases"
)

// Difficulty 由视频标题推断。
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Resource 是返回给客户端的统一资源描述。
type Resource struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	VideoID     string     `json:"videoId"`
	Type        string     `json:"type"`
	Free        bool       `json:"free"`
	Difficulty  Difficulty `json:"difficulty"`
	Source      string     `json:"source"`
	Description string     `json:"description"`
	Thumbnail   string     `json:"thumbnail"`
}

// Hit 是视频搜索的原始结果。
type Hit struct {
	VideoID     string
	Title       string
	Description string
	Thumbnail   string
}

// "intro" 同时覆盖 "introduction"。
var (
	beginnerKeywords = []string{"beginner", "basics", "basic", "intro", "101"}
	advancedKeywords = []string{"advanced", "expert", "master"}
)

// ClassifyDifficulty 按关键词判断标题难度，同时命中时入门优先。
func ClassifyDifficulty(title string) Difficulty {
	lower := strings.ToLower(title)
	for _, kw := range beginnerKeywords {
		if strings.Contains(lower, kw) {
			return DifficultyBeginner
		}
	}
	for _, kw := range advancedKeywords {
		if strings.Contains(lower, kw) {
			return DifficultyAdvanced
		}
	}
	return DifficultyIntermediate
}

// Key 归一化技能名：去首尾空白、转小写，连续空白替换为单个下划线。
func Key(skill string) string {
	fields := strings.Fields(cases.Fold().String(skill))
	return strings.Join(fields, "_")
}

// SourceYouTube 是目前唯一接入的来源。
const SourceYouTube = "YouTube"

func toResource(hit Hit) Resource {
	return Resource{
		Title:       hit.Title,
		URL:         "https://www.youtube.com/watch?v=" + hit.VideoID,
		VideoID:     hit.VideoID,
		Type:        "video",
		Free:        true,
		Difficulty:  ClassifyDifficulty(hit.Title),
		Source:      SourceYouTube,
		Description: hit.Description,
		Thumbnail:   hit.Thumbnail,
	}
}

// EmbedURL 返回视频的 iframe 地址。
func EmbedURL(videoID string) string {
	return "https://www.youtube.com/embed/" + videoID
}
