package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Projeto12026/crmcontador-sub000/internal/interfaces/http/dto"
)

// CronSecretHeader carries the trigger secret as an alternative to the query string
const CronSecretHeader = "X-Cron-Secret"

// CronSecret guards trigger endpoints with a shared secret taken from the
// "secret" query parameter or the X-Cron-Secret header. An empty configured
// secret leaves the endpoints open.
func CronSecret(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}

		provided := c.Query("secret")
		if provided == "" {
			provided = c.GetHeader(CronSecretHeader)
		}
		if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized,
				"invalid or missing trigger secret",
				c.GetString("request_id"),
			))
			return
		}
		c.Next()
	}
}
