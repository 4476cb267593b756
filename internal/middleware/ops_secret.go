package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/villa-intake-api/pkg/errors"
	"github.com/noah-isme/villa-intake-api/pkg/response"
)

// OpsSecretHeader carries the shared operator secret.
const OpsSecretHeader = "X-Ops-Secret"

// ContextOperatorKey is set to true once a request passed the secret check.
const ContextOperatorKey = "opsAuthenticated"

// OpsSecret guards operator routes with a shared secret. An empty secret
// leaves the routes open.
func OpsSecret(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Set(ContextOperatorKey, false)
			c.Next()
			return
		}

		provided := c.GetHeader(OpsSecretHeader)
		if provided == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing "+OpsSecretHeader+" header"))
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid operator secret"))
			c.Abort()
			return
		}

		c.Set(ContextOperatorKey, true)
		c.Next()
	}
}
