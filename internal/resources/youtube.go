package resources

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YouTubeProvider 通过 YouTube Data API v3 搜索视频。
type YouTubeProvider struct {
	service *youtube.Service
}

// NewYouTubeProvider 使用 API Key 创建 provider。
func NewYouTubeProvider(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTubeProvider, error) {
	if apiKey == "" {
		return nil, errors.New("youtube api key is required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &YouTubeProvider{service: svc}, nil
}

// Search 返回最多 limit 条视频结果。
func (p *YouTubeProvider) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	resp, err := p.service.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube search %q: %w", query, err)
	}

	hits := make([]Hit, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		hits = append(hits, Hit{
			VideoID:     item.Id.VideoId,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			Thumbnail:   thumbnailURL(item.Snippet.Thumbnails),
		})
	}
	return hits, nil
}

func thumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

// ErrProviderDisabled 表示未配置视频 API Key。
var ErrProviderDisabled = errors.New("video provider disabled")

// DisabledProvider 总是失败，缓存只返回已有数据。
type DisabledProvider struct{}

func (DisabledProvider) Search(context.Context, string, int) ([]Hit, error) {
	return nil, ErrProviderDisabled
}
