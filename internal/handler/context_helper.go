package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/villa-intake-api/internal/middleware"
)

// propertyIdentifier reads the property id from the path, falling back to
// the ?property= query parameter.
func propertyIdentifier(c *gin.Context) string {
	if slug := strings.TrimSpace(c.Param("slug")); slug != "" {
		return slug
	}
	return strings.TrimSpace(c.Query("property"))
}

func idempotencyKey(c *gin.Context) string {
	key := strings.TrimSpace(c.GetHeader(middleware.IdempotencyHeader))
	if len(key) > 200 {
		key = key[:200]
	}
	return key
}

func isoTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
