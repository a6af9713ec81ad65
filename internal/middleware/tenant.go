package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"tripcore/internal/tenant"
)

// TenantHeader carries the tenant id on every request under /v1.
const TenantHeader = "X-Tenant-ID"

// Tenant binds the tenant named by the X-Tenant-ID header to the request
// context for the lifetime of the request. Requests without a valid tenant
// are rejected with 400.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, release, err := tenant.Enter(c.Request.Context(), c.GetHeader(TenantHeader))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "tenant"})
			return
		}
		defer release()

		id, _ := tenant.FromContext(ctx)
		c.Set("tenant_id", string(id))
		newrelic.FromContext(ctx).AddAttribute("tenant_id", string(id))

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
