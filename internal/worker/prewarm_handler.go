package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"jobgenie/internal/tasks"
)

// Prewarmer 是资源缓存的预热入口，*resources.Cache 满足该接口。
type Prewarmer interface {
	Prewarm(ctx context.Context, skills []string)
}

// SkillSource 返回需要预热的技能名，例如 profile.Service.AllSkills。
type SkillSource func(ctx context.Context) ([]string, error)

// PrewarmTaskHandler 消费学习资源预热任务。
type PrewarmTaskHandler struct {
	cache   Prewarmer
	sources []SkillSource
	logger  *slog.Logger
}

// NewPrewarmTaskHandler 创建预热处理器。payload 未指定技能时依次读取 sources。
func NewPrewarmTaskHandler(cache Prewarmer, logger *slog.Logger, sources ...SkillSource) *PrewarmTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrewarmTaskHandler{cache: cache, sources: sources, logger: logger}
}

// ProcessTask 实现 asynq.Handler。单个来源失败不影响其它来源。
func (h *PrewarmTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ResourcePrewarmPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	log := h.logger.With(slog.String("correlation_id", payload.CorrelationID))

	skills := payload.Skills
	if len(skills) == 0 {
		for _, src := range h.sources {
			names, err := src(ctx)
			if err != nil {
				log.Warn("collect skills failed", slog.Any("error", err))
				continue
			}
			skills = append(skills, names...)
		}
	}
	if len(skills) == 0 {
		log.Info("no skills to prewarm")
		return nil
	}

	log.Info("prewarming learning resources", slog.Int("skills", len(skills)))
	h.cache.Prewarm(ctx, skills)
	return nil
}
