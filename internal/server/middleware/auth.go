package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"parley/internal/pkg/ctxutil"
	response "parley/internal/pkg/http"
	"parley/internal/pkg/jwt"
)

// TokenValidator 校验访问令牌，*service.AuthService 满足该接口
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// Auth JWT 认证中间件
// 从 Authorization header 中提取 Bearer token，验证后注入 user_id 到 context
// 浏览器无法为 WebSocket 握手设置 header，握手请求允许使用 ?token= 查询参数
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			unauthorized(c, "未授权")
			return
		}

		claims, err := validator.ValidateToken(tokenString)
		if err != nil {
			unauthorized(c, "Token无效或已过期")
			return
		}

		// 将 user_id 注入到 context
		ctx := ctxutil.WithUserID(c.Request.Context(), claims.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", claims.UserID)

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if websocket.IsWebSocketUpgrade(c.Request) {
			if token := c.Query("token"); token != "" {
				return token, true
			}
		}
		return "", false
	}

	// 提取 Token（Bearer {token}）
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, response.NewErrorResponse(response.CodeUnauthorized, message))
}
