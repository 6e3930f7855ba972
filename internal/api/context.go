package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"jobgenie/internal/api/middleware"
)

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get(middleware.UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok && id > 0
}

func userEmailFromContext(c *gin.Context) string {
	return c.GetString(middleware.UserEmailKey)
}

// idParam 解析路径中的正整数 id。
func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
