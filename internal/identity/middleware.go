package identity

import (
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/apperrors"
)

const ctxKeyIdentity = "identity"

// Authenticate resolves the caller and stores it on the gin context.
// Failures are recorded with c.Error and rendered by the error middleware.
func Authenticate(resolver Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := resolver.Resolve(c.Request)
		if err != nil {
			_ = c.Error(apperrors.Wrap(err, apperrors.KindUnauthenticated, "Missing or invalid auth context"))
			c.Abort()
			return
		}
		c.Set(ctxKeyIdentity, id)
		c.Next()
	}
}

// RequireRole aborts with Forbidden unless the authenticated caller holds role.
func RequireRole(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := FromContext(c)
		if !ok {
			_ = c.Error(apperrors.New(apperrors.KindUnauthenticated, "Missing or invalid auth context"))
			c.Abort()
			return
		}
		if !id.Roles.Has(role) {
			_ = c.Error(apperrors.Newf(apperrors.KindForbidden, "%s role required", role))
			c.Abort()
			return
		}
		c.Next()
	}
}

// FromContext returns the identity set by Authenticate.
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(ctxKeyIdentity)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
