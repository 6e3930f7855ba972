package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"jobgenie/internal/api/middleware"
	"jobgenie/internal/profile"
	"jobgenie/internal/storage"
)

const maxAvatarBytes = 5 << 20

// 允许的头像格式，按嗅探出的 MIME 决定扩展名。
var avatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// ObjectStorage 是头像读写用到的对象存储子集，*storage.Client 满足该接口。
type ObjectStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// ProfileHandler 负责资料读写与头像上传。
type ProfileHandler struct {
	profiles *profile.Service
	objects  ObjectStorage
	scanner  VirusScanner
	logger   *slog.Logger
}

// NewProfileHandler 返回 ProfileHandler 实例。
func NewProfileHandler(profiles *profile.Service, objects ObjectStorage, scanner VirusScanner, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, objects: objects, scanner: scanner, logger: logger}
}

// Get 返回当前用户资料；不存在时返回 null。
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	p, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("load profile failed", slog.Any("error", err))
		Internal(c, "failed to load profile")
		return
	}
	c.JSON(http.StatusOK, p)
}

// Update 部分更新资料，未提供的字段保持不变。
func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req profile.Update
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid profile payload")
		return
	}
	p, err := h.profiles.Upsert(c.Request.Context(), userID, req)
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("update profile failed", slog.Any("error", err))
		Internal(c, "failed to update profile")
		return
	}
	c.JSON(http.StatusOK, p)
}

// CompleteOnboarding 保存引导流程最后一步并标记完成。请求体可为空。
func (h *ProfileHandler) CompleteOnboarding(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req profile.Update
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			BadRequest(c, "invalid profile payload")
			return
		}
	}
	p, err := h.profiles.CompleteOnboarding(c.Request.Context(), userID, req)
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("complete onboarding failed", slog.Any("error", err))
		Internal(c, "failed to complete onboarding")
		return
	}
	c.JSON(http.StatusOK, p)
}

// UploadAvatar 扫描并保存头像，替换旧头像。
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	log := middleware.LoggerOr(c, h.logger).With(slog.Uint64("user_id", uint64(userID)))

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size <= 0 || file.Size > maxAvatarBytes {
		BadRequest(c, "avatar must be between 1 byte and 5 MB")
		return
	}

	contentType, err := sniffContentType(file)
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	ext, allowed := avatarTypes[contentType]
	if !allowed || !extensionMatches(file.Filename, ext) {
		BadRequest(c, "avatar must be a png, jpeg or webp image")
		return
	}

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	err = h.scanner.Scan(fileReader)
	fileReader.Close()
	if errors.Is(err, ErrInfected) {
		log.Warn("infected avatar rejected", slog.Any("error", err))
		BadRequest(c, "malicious file detected")
		return
	}
	if err != nil {
		log.Error("scan file", slog.Any("error", err))
		Internal(c, "failed to scan file")
		return
	}

	fileReader, err = file.Open()
	if err != nil {
		Internal(c, "failed to reopen file")
		return
	}
	defer fileReader.Close()

	ctx := c.Request.Context()
	previous, err := h.profiles.Get(ctx, userID)
	if err != nil {
		log.Error("load profile failed", slog.Any("error", err))
		Internal(c, "failed to load profile")
		return
	}

	objectKey := storage.AvatarKey(userID, uuid.NewString(), ext)
	if err := h.objects.Upload(ctx, objectKey, fileReader, file.Size, contentType); err != nil {
		log.Error("upload file", slog.Any("error", err))
		Internal(c, "failed to upload file")
		return
	}
	if err := h.profiles.SetAvatar(ctx, userID, objectKey); err != nil {
		log.Error("save avatar key", slog.Any("error", err))
		_ = h.objects.Delete(context.WithoutCancel(ctx), objectKey)
		Internal(c, "failed to save avatar")
		return
	}
	if previous != nil && previous.AvatarObjectKey != "" && previous.AvatarObjectKey != objectKey {
		if err := h.objects.Delete(ctx, previous.AvatarObjectKey); err != nil {
			log.Warn("delete previous avatar", slog.Any("error", err))
		}
	}

	c.JSON(http.StatusCreated, gin.H{"hasAvatar": true})
}

// Avatar 输出当前用户头像。
func (h *ProfileHandler) Avatar(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	p, err := h.profiles.Get(ctx, userID)
	if err != nil {
		Internal(c, "failed to load profile")
		return
	}
	if p == nil || p.AvatarObjectKey == "" {
		NotFound(c, "avatar not found")
		return
	}

	body, contentType, err := h.objects.Open(ctx, p.AvatarObjectKey)
	if err != nil {
		if storage.IsNoSuchKey(err) {
			NotFound(c, "avatar not found")
			return
		}
		middleware.LoggerOr(c, h.logger).Error("open avatar", slog.Any("error", err))
		Internal(c, "failed to load avatar")
		return
	}
	defer body.Close()

	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, -1, contentType, body, nil)
}

func sniffContentType(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

func extensionMatches(filename, ext string) bool {
	got := strings.ToLower(filepath.Ext(filename))
	if got == ext {
		return true
	}
	return ext == ".jpg" && got == ".jpeg"
}
