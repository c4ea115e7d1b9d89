package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodyLimit caps request bodies at limitMB megabytes. Reads past the cap
// fail, which the JSON binding reports as a bad request.
func BodyLimit(limitMB int64) gin.HandlerFunc {
	limit := limitMB << 20
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
