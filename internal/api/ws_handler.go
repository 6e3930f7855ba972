package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"jobgenie/internal/api/middleware"
	"jobgenie/internal/auth"
)

const (
	wsAuthTimeout  = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongWait     = 2 * wsPingInterval
	wsWriteWait    = 5 * time.Second
	wsMaxMessage   = 4 << 10
)

// Subscriber 订阅 Redis 频道，*redis.Client 满足该接口。
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// WsHandler 把用户通知频道（会话变化、导出结果）转发到 WebSocket。
// 连接关闭即取消订阅。
type WsHandler struct {
	subscriber Subscriber
	validator  middleware.TokenValidator
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewWsHandler 构造 WebSocket 处理器。allowedOrigins 为空时只允许同源。
func NewWsHandler(subscriber Subscriber, validator middleware.TokenValidator, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		subscriber: subscriber,
		validator:  validator,
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(allowedOrigins) == 0 {
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// HandleConnection 升级连接。令牌可放在 Authorization 头，
// 浏览器无法设置头时由第一条消息 {"type":"auth","token":...} 提供。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	headerToken := middleware.BearerToken(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessage)

	log := h.logger.With(slog.String("client_ip", c.ClientIP()))

	userID, err := h.authenticate(conn, headerToken)
	if err != nil {
		log.Warn("websocket authentication failed", slog.Any("error", err))
		writeClose(conn, websocket.ClosePolicyViolation, "unauthorized")
		return
	}
	log = log.With(slog.Uint64("user_id", uint64(userID)))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	channel := auth.NotifyChannel(userID)
	pubsub := h.subscriber.Subscribe(ctx, channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Error("subscribe redis channel failed", slog.Any("error", err))
		writeClose(conn, websocket.CloseInternalServerErr, "subscribe failed")
		return
	}
	log.Info("websocket subscribed", slog.String("channel", channel))

	if err := writeJSON(conn, gin.H{"type": "ready", "user_id": userID}); err != nil {
		return
	}

	readErr := make(chan error, 1)
	go func() { readErr <- h.drain(conn) }()

	err = h.forward(ctx, conn, pubsub.Channel(), readErr)
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Info("websocket connection closed", slog.Any("error", err))
		return
	}
	log.Info("websocket connection closed")
}

func (h *WsHandler) authenticate(conn *websocket.Conn, token string) (uint, error) {
	if token == "" {
		_ = conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("read auth message: %w", err)
		}
		var msg wsAuthMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return 0, fmt.Errorf("decode auth payload: %w", err)
		}
		if msg.Type != "auth" || msg.Token == "" {
			return 0, errors.New("auth message required")
		}
		token = msg.Token
	}

	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		return 0, fmt.Errorf("validate token: %w", err)
	}
	if claims.TokenType != auth.TokenTypeAccess {
		return 0, fmt.Errorf("invalid token type: %s", claims.TokenType)
	}
	return claims.UserID, nil
}

// drain 读取并丢弃客户端消息，用于感知断开与处理 pong。
func (h *WsHandler) drain(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func (h *WsHandler) forward(ctx context.Context, conn *websocket.Conn, messages <-chan *redis.Message, readErr <-chan error) error {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case msg, ok := <-messages:
			if !ok {
				return errors.New("pubsub channel closed")
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return fmt.Errorf("write message: %w", err)
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}

func writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteWait))
}
