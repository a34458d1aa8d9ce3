package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oblivion-social/oblivion-api/pkg/jwt"
	"github.com/oblivion-social/oblivion-api/pkg/response"
)

const walletKey = "wallet"

// Auth 必须携带有效的 Bearer token；WebSocket 握手可用 ?token=
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseToken(c, secret)
		if !ok {
			response.Unauthorized(c, "missing or invalid token")
			return
		}
		c.Set(walletKey, claims.Subject)
		c.Next()
	}
}

// OptionalAuth 有 token 时解析出钱包地址，没有也放行（公开读接口用来计算 liked 等字段）
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := parseToken(c, secret); ok {
			c.Set(walletKey, claims.Subject)
		}
		c.Next()
	}
}

// CurrentWallet 当前登录钱包地址，未登录为空
func CurrentWallet(c *gin.Context) string {
	return c.GetString(walletKey)
}

func parseToken(c *gin.Context, secret string) (*jwt.Claims, bool) {
	raw := ""
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		raw = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	} else if t := c.Query("token"); t != "" {
		raw = t
	}
	if raw == "" || secret == "" {
		return nil, false
	}
	claims, err := jwt.Parse(secret, raw)
	if err != nil {
		return nil, false
	}
	return claims, true
}
