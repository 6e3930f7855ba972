package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"golang.org/x/sync/errgroup"

	"jobgenie/internal/metrics"
)

const (
	// Namespace 是缓存写入的所有键的前缀。
	Namespace    = "learning_resources:"
	DefaultTTL   = 7 * 24 * time.Hour
	DefaultLimit = 5
)

// ErrNotFound 表示 Store 中不存在该键。
var ErrNotFound = errors.New("resources: key not found")

// Store 是缓存依赖的键值存储接口。
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
}

// Provider 搜索视频。
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

type entry struct {
	Resources []Resource `json:"resources"`
	Timestamp int64      `json:"timestamp"`
}

// Cache 按技能缓存学习资源，带新鲜度窗口。查询永不失败：
// 搜索出错时回退到最后一次存储的列表，没有则返回空列表。
type Cache struct {
	store    Store
	provider Provider
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option 定制 Cache。
type Option func(*Cache)

// WithTTL 覆盖新鲜度窗口。
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock 替换 time.Now，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger 设置日志。
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache 基于 store 与 provider 构造缓存。
func NewCache(store Store, provider Provider, opts ...Option) *Cache {
	c := &Cache{
		store:    store,
		provider: provider,
		ttl:      DefaultTTL,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get 返回技能对应的资源，最多 limit 条；limit <= 0 表示 DefaultLimit。
func (c *Cache) Get(ctx context.Context, skill string, limit int) []Resource {
	key := Key(skill)
	if key == "" {
		return []Resource{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	cached, ok := c.load(ctx, key)
	if ok && c.fresh(cached) {
		metrics.ResourceCacheHit()
		return capped(cached.Resources, limit)
	}
	metrics.ResourceCacheMiss()

	fetched, err := c.fetch(ctx, key, skill, limit)
	if err != nil {
		metrics.ResourceProviderError()
		c.logger.Warn("learning resource search failed",
			slog.String("skill", skill),
			slog.Bool("has_fallback", ok),
			slog.Any("error", err),
		)
		if ok {
			metrics.ResourceStaleFallback()
			return capped(cached.Resources, limit)
		}
		return []Resource{}
	}
	return fetched
}

// Prewarm 拉取缺失或过期的技能条目，同键技能只拉一次。
// 并发执行，失败只记日志。
func (c *Cache) Prewarm(ctx context.Context, skills []string) {
	seen := make(map[string]string, len(skills))
	for _, skill := range skills {
		key := Key(skill)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = skill
	}

	var g errgroup.Group
	for key, skill := range seen {
		if cached, ok := c.load(ctx, key); ok && c.fresh(cached) {
			continue
		}
		g.Go(func() error {
			if _, err := c.fetch(ctx, key, skill, DefaultLimit); err != nil {
				metrics.ResourceProviderError()
				c.logger.Warn("prewarm learning resources failed",
					slog.String("skill", skill),
					slog.Any("error", err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Clear 删除全部缓存条目，不影响其他键。
func (c *Cache) Clear(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx, Namespace)
	if err != nil {
		return 0, fmt.Errorf("list cache keys: %w", err)
	}
	keys = slice.FilterMap(keys, func(_ int, k string) (string, bool) {
		return k, strings.HasPrefix(k, Namespace)
	})
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("delete cache keys: %w", err)
	}
	return len(keys), nil
}

// capped 截断到 limit 条，条目里存的可能比本次请求多。
func capped(list []Resource, limit int) []Resource {
	return list[:min(limit, len(list))]
}

func (c *Cache) fresh(e entry) bool {
	stored := time.UnixMilli(e.Timestamp)
	return c.now().Sub(stored) < c.ttl
}

func (c *Cache) load(ctx context.Context, key string) (entry, bool) {
	raw, err := c.store.Get(ctx, Namespace+key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("read learning resource cache failed", slog.String("key", key), slog.Any("error", err))
		}
		return entry{}, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("decode learning resource cache failed", slog.String("key", key), slog.Any("error", err))
		return entry{}, false
	}
	if e.Resources == nil {
		e.Resources = []Resource{}
	}
	return e, true
}

func (c *Cache) fetch(ctx context.Context, key, skill string, limit int) ([]Resource, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := strings.TrimSpace(skill) + " tutorial"
	hits, err := c.provider.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	list := slice.Map(hits, func(_ int, h Hit) Resource { return toResource(h) })

	data, err := json.Marshal(entry{Resources: list, Timestamp: c.now().UnixMilli()})
	if err != nil {
		return list, nil
	}
	if err := c.store.Set(ctx, Namespace+key, data); err != nil {
		c.logger.Warn("write learning resource cache failed", slog.String("key", key), slog.Any("error", err))
	}
	return list, nil
}
