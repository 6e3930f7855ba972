package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeDocumentExport  = "document:export"
	TypeResourcePrewarm = "resources:prewarm"
)

// Enqueuer 是 asynq.Client 的最小子集，便于测试替换。
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DocumentExportPayload 描述导出 PDF 所需的最小信息。
type DocumentExportPayload struct {
	DocumentID    uint   `json:"document_id"`
	UserID        uint   `json:"user_id"`
	Version       int    `json:"version"`
	CorrelationID string `json:"correlation_id"`
}

// NewDocumentExportTask 构造文档导出任务。
func NewDocumentExportTask(p DocumentExportPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDocumentExport, payload, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)), nil
}

// ResourcePrewarmPayload 列出需要预热的技能。为空时由 worker 从数据库收集。
type ResourcePrewarmPayload struct {
	Skills        []string `json:"skills,omitempty"`
	CorrelationID string   `json:"correlation_id,omitempty"`
}

// NewResourcePrewarmTask 构造学习资源预热任务。预热失败不重试，下一轮会再次覆盖。
func NewResourcePrewarmTask(p ResourcePrewarmPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeResourcePrewarm, payload, asynq.MaxRetry(0), asynq.Timeout(10*time.Minute)), nil
}
