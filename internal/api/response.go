package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jobgenie/internal/quota"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func ErrorCode(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{"error": msg, "code": code})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func Unauthorized(c *gin.Context)           { Error(c, http.StatusUnauthorized, "unauthorized") }
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func Forbidden(c *gin.Context, msg string)  { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)   { Error(c, http.StatusConflict, msg) }
func Internal(c *gin.Context, msg string)   { Error(c, http.StatusInternalServerError, msg) }
func BadGateway(c *gin.Context, msg string) { Error(c, http.StatusBadGateway, msg) }

// PaymentRequired 返回额度用尽，前端据此引导升级。
func PaymentRequired(c *gin.Context, a quota.Allowance) {
	c.JSON(http.StatusPaymentRequired, gin.H{
		"error":     "limit reached",
		"code":      "quota_exceeded",
		"plan":      a.Plan,
		"docType":   a.DocType,
		"limit":     a.Limit,
		"used":      a.Used,
		"remaining": a.Remaining,
	})
}

// MalformedAIResponse 表示模型输出无法解析。
func MalformedAIResponse(c *gin.Context) {
	ErrorCode(c, http.StatusBadGateway, "malformed_ai_response", "ai response could not be parsed")
}
