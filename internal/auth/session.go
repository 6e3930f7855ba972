package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 会话变化事件，通过用户通知频道推送给 WebSocket 订阅者。
const (
	SessionSignedIn  = "signed_in"
	SessionSignedOut = "signed_out"
	SessionRefreshed = "refreshed"
)

// Publisher 是 Redis Pub/Sub 的最小接口，*redis.Client 满足该接口。
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// SessionEvent 是推送给客户端的会话消息。
type SessionEvent struct {
	Type   string    `json:"type"`
	Event  string    `json:"event"`
	UserID uint      `json:"user_id"`
	At     time.Time `json:"at"`
}

// NotifyChannel 返回用户的通知频道名，导出任务与会话事件共用。
func NotifyChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

// SessionNotifier 发布会话变化事件。
type SessionNotifier struct {
	publisher Publisher
	now       func() time.Time
}

// NewSessionNotifier 构造通知器。
func NewSessionNotifier(publisher Publisher) *SessionNotifier {
	return &SessionNotifier{publisher: publisher, now: time.Now}
}

// Notify 发布一次会话事件。
func (n *SessionNotifier) Notify(ctx context.Context, userID uint, event string) error {
	if n == nil || n.publisher == nil {
		return nil
	}
	data, err := json.Marshal(SessionEvent{
		Type:   "session",
		Event:  event,
		UserID: userID,
		At:     n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal session event: %w", err)
	}
	if err := n.publisher.Publish(ctx, NotifyChannel(userID), data).Err(); err != nil {
		return fmt.Errorf("publish session event: %w", err)
	}
	return nil
}
