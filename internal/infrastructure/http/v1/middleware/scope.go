package middleware

import (
	"github.com/gin-gonic/gin"

	"seqgen/internal/core/apperror"
	"seqgen/internal/core/scope"
)

// ScopeHeader is the HTTP header carrying the tenant scope identifier.
const ScopeHeader = "X-Scope-ID"

// Scope middleware extracts the scope identifier from the request header and
// injects it into the request context. All sequence state is partitioned by
// scope, so this middleware MUST run before any handler touching the store.
func Scope() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(ScopeHeader)
		if id == "" {
			_ = c.Error(
				apperror.NewValidation("scope is required").
					WithDetail("header", ScopeHeader),
			)
			c.Abort()
			return
		}

		ctx := scope.WithScope(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)

		c.Set("scope_id", id)

		c.Next()
	}
}
