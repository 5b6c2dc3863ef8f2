package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Projeto12026/crmcontador-sub000/internal/interfaces/http/dto"
)

// BodyLimit caps trigger request bodies at limit bytes. A declared length over
// the cap is refused up front with 413; chunked bodies fail when read past it.
func BodyLimit(limit int64) gin.HandlerFunc {
	tooLarge := dto.NewErrorResponse(dto.ErrCodeRequestTooLarge, "Request body is larger than the trigger endpoints accept")
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
