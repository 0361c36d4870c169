package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/feedback-insights-api/internal/models"
	"github.com/noah-isme/feedback-insights-api/internal/service"
	appErrors "github.com/noah-isme/feedback-insights-api/pkg/errors"
	"github.com/noah-isme/feedback-insights-api/pkg/response"
)

// PolicyFunc evaluates whether the authenticated user may perform an action.
type PolicyFunc func(claims *models.JWTClaims) service.Decision

// RequirePolicy enforces an explicit authorization decision. A deny is
// returned to the client with its reason instead of falling through to a
// broader rule.
func RequirePolicy(policy PolicyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentClaims(c)
		decision := policy(claims)
		if !decision.Allow {
			if claims == nil {
				response.Error(c, appErrors.ErrUnauthorized)
			} else {
				response.Error(c, appErrors.Clone(appErrors.ErrForbidden, decision.Reason))
			}
			c.Abort()
			return
		}
		c.Next()
	}
}
