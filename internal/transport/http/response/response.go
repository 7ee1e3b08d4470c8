package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK writes a 200 envelope: {"success": true} merged with fields.
func OK(c *gin.Context, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// Error writes {"error": message} with the given status.
func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, gin.H{"error": message})
}

// ErrorWith writes {"error": message} merged with fields.
func ErrorWith(c *gin.Context, httpStatus int, message string, fields gin.H) {
	body := gin.H{"error": message}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(httpStatus, body)
}

// Abort is Error for middleware: later handlers do not run.
func Abort(c *gin.Context, httpStatus int, message string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{"error": message})
}
