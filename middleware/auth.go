package middleware

import (
	"errors"
	"net/http"

	"github.com/sylvexn/nexus/database"
	"github.com/sylvexn/nexus/models"
	"github.com/sylvexn/nexus/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// APIKeyAuth 通过 X-API-Key 头解析请求所属的用户。
// 会话与密码认证由外部协作方负责，引擎只认 API Key。
func APIKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			utils.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "未提供 API Key")
			c.Abort()
			return
		}

		var user models.User
		err := database.DB.Where("api_key = ?", apiKey).First(&user).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "API Key 无效")
			} else {
				utils.Error(c, http.StatusInternalServerError, "INTERNAL", "校验 API Key 失败")
			}
			c.Abort()
			return
		}

		c.Set("owner_id", user.ID)
		c.Next()
	}
}

func OwnerID(c *gin.Context) uint {
	if v, ok := c.Get("owner_id"); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
