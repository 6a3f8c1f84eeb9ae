package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/univhub/timetable-engine/internal/models"
	appErrors "github.com/univhub/timetable-engine/pkg/errors"
	"github.com/univhub/timetable-engine/pkg/response"
)

// RequireRoles is a coarse role pre-filter. Fine-grained scope checks
// (department, own sessions, own group) stay in the authorization gate.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		actor := Actor(c)
		if actor == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[actor.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
