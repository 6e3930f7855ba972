package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"jobgenie/internal/auth"
)

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 注意：这里的字段名与前端解析保持一致。
type ExportNotifyMessage struct {
	Type          string `json:"type"`
	Status        string `json:"status"`
	DocumentID    uint   `json:"document_id"`
	Version       int    `json:"version"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

const exportMessageType = "document_export"

func publishNotify(ctx context.Context, pub auth.Publisher, userID uint, msg ExportNotifyMessage) error {
	msg.Type = exportMessageType
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := auth.NotifyChannel(userID)
	if err := pub.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
