package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"jobgenie/internal/api/middleware"
	"jobgenie/internal/auth"
	"jobgenie/internal/config"
	"jobgenie/internal/database"
	"jobgenie/internal/quota"
)

const refreshTokenCookieName = "refresh_token"
const refreshTokenBlacklistKeyPrefix = "auth:refresh:blacklist:"

// authRedis 是认证流程用到的 Redis 命令子集，*redis.Client 满足该接口。
type authRedis interface {
	redisRateCounter
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// AuthHandler 处理注册、登录、刷新、退出与会话查询。
type AuthHandler struct {
	db          *gorm.DB
	authService *auth.AuthService
	redis       authRedis
	sessions    *auth.SessionNotifier
	logger      *slog.Logger
	cfg         config.AuthConfig
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(db *gorm.DB, authService *auth.AuthService, redisClient authRedis, sessions *auth.SessionNotifier, logger *slog.Logger, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{
		db:          db,
		authService: authService,
		redis:       redisClient,
		sessions:    sessions,
		logger:      logger,
		cfg:         cfg,
	}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	UserID      uint   `json:"user_id"`
	Onboarded   bool   `json:"onboarded"`
}

// SignUp 创建账号，同时建立空资料与免费订阅。
func (h *AuthHandler) SignUp(c *gin.Context) {
	req, email, ok := bindCredentials(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	user := database.User{Email: email, PasswordHash: hashed}
	errTaken := errors.New("email taken")
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errTaken
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if err := tx.Create(&database.Profile{UserID: user.ID}).Error; err != nil {
			return err
		}
		return tx.Create(&database.Subscription{UserID: user.ID, Plan: quota.PlanFree, Status: "active"}).Error
	})
	if errors.Is(err, errTaken) {
		logger.Info("sign up conflict: user already exists")
		Conflict(c, "email already registered")
		return
	}
	if err != nil {
		logger.Error("create user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	h.issueTokens(c, http.StatusCreated, user, false, auth.SessionSignedIn)
}

// SignIn 校验口令并返回 Token。
func (h *AuthHandler) SignIn(c *gin.Context) {
	req, email, ok := bindCredentials(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	// 速率限制：每 IP+邮箱 每小时 N 次
	rateKey := "rate:login:" + c.ClientIP() + ":" + email + ":" + time.Now().UTC().Format("2006010215")
	count, err := incrWithTTL(ctx, h.redis, rateKey, time.Hour)
	if err != nil {
		logger.Warn("login rate counter unavailable", slog.Any("error", err))
		count = 0
	}
	if h.cfg.LoginRateLimitPerHour > 0 && count > int64(h.cfg.LoginRateLimitPerHour) {
		Error(c, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if ttl, _ := h.redis.TTL(ctx, lockKey(email)).Result(); ttl > 0 {
		Error(c, http.StatusTooManyRequests, "account temporarily locked")
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info("sign in failed: user not found")
			_ = h.incrementLoginFail(ctx, email)
			Unauthorized(c)
			return
		}
		logger.Error("sign in query failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if !h.authService.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Info("sign in failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		_ = h.incrementLoginFail(ctx, email)
		Unauthorized(c)
		return
	}

	// 登录成功：清理失败计数
	_ = h.redis.Del(ctx, failKey(email)).Err()

	h.issueTokens(c, http.StatusOK, user, h.onboarded(ctx, user.ID), auth.SessionSignedIn)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh 校验刷新令牌并颁发新的 TokenPair，旧令牌随即作废。
func (h *AuthHandler) Refresh(c *gin.Context) {
	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	claims, key, ok := h.validRefreshToken(c, logger)
	if !ok {
		Unauthorized(c)
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).Take(&user, claims.UserID).Error; err != nil {
		logger.Info("refresh user not found", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
		logger.Error("refresh revoke old token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.issueTokens(c, http.StatusOK, user, h.onboarded(ctx, user.ID), auth.SessionRefreshed)
}

// SignOut 将刷新令牌加入黑名单，防止继续使用。
func (h *AuthHandler) SignOut(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	claims, key, ok := h.validRefreshToken(c, logger)
	if ok && claims.UserID == userID {
		if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
			logger.Error("sign out revoke token failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
	}

	h.clearRefreshCookie(c)
	if err := h.sessions.Notify(ctx, userID, auth.SessionSignedOut); err != nil {
		logger.Warn("publish session event failed", slog.Any("error", err))
	}
	c.Status(http.StatusNoContent)
}

type sessionResponse struct {
	UserID    uint   `json:"user_id"`
	Email     string `json:"email"`
	Onboarded bool   `json:"onboarded"`
	Plan      string `json:"plan"`
}

// Session 返回当前登录用户，前端据此决定是否跳转引导页。
func (h *AuthHandler) Session(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()

	var user database.User
	if err := h.db.WithContext(ctx).Take(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			Unauthorized(c)
			return
		}
		h.loggerFromContext(c).Error("load session user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	resp := sessionResponse{UserID: user.ID, Email: user.Email, Onboarded: h.onboarded(ctx, user.ID), Plan: quota.PlanFree}
	var sub database.Subscription
	if err := h.db.WithContext(ctx).Where("user_id = ?", user.ID).Take(&sub).Error; err == nil && sub.Plan != "" {
		resp.Plan = sub.Plan
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) issueTokens(c *gin.Context, status int, user database.User, onboarded bool, event string) {
	logger := h.loggerFromContext(c)
	tokenPair, err := h.authService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		logger.Error("generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if err := h.sessions.Notify(c.Request.Context(), user.ID, event); err != nil {
		logger.Warn("publish session event failed", slog.Any("error", err))
	}

	h.setRefreshCookie(c, tokenPair.RefreshToken)
	c.JSON(status, tokenResponse{
		AccessToken: tokenPair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.authService.AccessTokenTTL().Seconds()),
		UserID:      user.ID,
		Onboarded:   onboarded,
	})
}

func (h *AuthHandler) validRefreshToken(c *gin.Context, logger *slog.Logger) (*auth.TokenClaims, string, bool) {
	refreshToken := h.extractRefreshToken(c)
	if refreshToken == "" {
		return nil, "", false
	}
	claims, err := h.authService.ValidateToken(refreshToken)
	if err != nil {
		logger.Info("refresh token invalid", slog.Any("error", err))
		return nil, "", false
	}
	if claims.TokenType != auth.TokenTypeRefresh || claims.ID == "" {
		logger.Info("refresh token wrong type", slog.String("token_type", claims.TokenType))
		return nil, "", false
	}

	key := refreshTokenBlacklistKeyPrefix + claims.ID
	err = h.redis.Get(c.Request.Context(), key).Err()
	if err == nil {
		logger.Info("refresh token revoked", slog.String("jti", claims.ID))
		return nil, "", false
	}
	if !errors.Is(err, redis.Nil) {
		logger.Error("refresh token blacklist lookup failed", slog.Any("error", err))
		return nil, "", false
	}
	return claims, key, true
}

func (h *AuthHandler) onboarded(ctx context.Context, userID uint) bool {
	var p database.Profile
	if err := h.db.WithContext(ctx).Select("onboarded").Where("user_id = ?", userID).Take(&p).Error; err != nil {
		return false
	}
	return p.Onboarded
}

func (h *AuthHandler) extractRefreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		return token
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, refreshToken string) {
	maxAge := int(h.authService.RefreshTokenTTL().Seconds())
	if maxAge <= 0 {
		maxAge = int(time.Hour.Seconds())
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    refreshToken,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   strings.TrimSpace(h.cfg.CookieDomain),
		Expires:  time.Now().Add(h.authService.RefreshTokenTTL()),
	})
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   strings.TrimSpace(h.cfg.CookieDomain),
	})
}

func (h *AuthHandler) revokeRefreshToken(ctx context.Context, key string, expiresAt *jwt.NumericDate) error {
	ttl := h.authService.RefreshTokenTTL()
	if expiresAt != nil {
		ttl = time.Until(expiresAt.Time)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return h.redis.Set(ctx, key, "revoked", ttl).Err()
}

func (h *AuthHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	return middleware.LoggerOr(c, h.logger)
}

func (h *AuthHandler) incrementLoginFail(ctx context.Context, email string) error {
	count, err := incrWithTTL(ctx, h.redis, failKey(email), h.cfg.LoginLockTTL)
	if err != nil {
		return err
	}
	if h.cfg.LoginLockThreshold > 0 && count >= int64(h.cfg.LoginLockThreshold) {
		return h.redis.Set(ctx, lockKey(email), "1", h.cfg.LoginLockTTL).Err()
	}
	return nil
}

// bindCredentials 解析请求体；邮箱先归一化再校验格式。
func bindCredentials(c *gin.Context) (credentialsRequest, string, bool) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return req, "", false
	}
	email := normalizeEmail(req.Email)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.Var(email, "required,email,max=255"); err != nil {
			BadRequest(c, "invalid email")
			return req, "", false
		}
	}
	return req, email, true
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
func lockKey(email string) string        { return "lock:login:" + email }
func failKey(email string) string        { return "lock:login:fail:" + email }

func isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}
