package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/seekwell/seekwell/internal/pkg/errcode"
	"github.com/seekwell/seekwell/internal/pkg/jwt"
	"github.com/seekwell/seekwell/internal/pkg/response"
	"github.com/seekwell/seekwell/internal/tenant"
)

const ContextTenantIDKey = "tenant_id"

// JWTAuth resolves the caller's tenant from a bearer token and binds it to
// the request context. Handlers and everything below them read the tenant
// from the context, never from request parameters.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(parts[1], secret)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextTenantIDKey, claims.TenantID)
		c.Request = c.Request.WithContext(tenant.WithTenant(c.Request.Context(), claims.TenantID))
		c.Next()
	}
}
