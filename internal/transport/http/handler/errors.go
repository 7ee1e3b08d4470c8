package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"sam-assistant/internal/ai"
	"sam-assistant/internal/app"
	"sam-assistant/internal/transport/http/response"
)

// writeError forwards rate-limit and availability statuses from AI providers
// and reports everything else as a 500 carrying the error message.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	if status, ok := ai.UpstreamStatus(err); ok {
		response.Error(c, status, upstreamMessage(status))
		return
	}
	response.Error(c, http.StatusInternalServerError, err.Error())
}

func upstreamMessage(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "The AI service is receiving too many requests. Please try again in a moment."
	case http.StatusPaymentRequired:
		return "The AI service is unavailable because its usage limit was reached."
	default:
		return "The AI service is temporarily unavailable. Please try again later."
	}
}

// bindJSON decodes the body into req. An empty body is accepted when
// optional is set, leaving req at its zero value.
func bindJSON(c *gin.Context, req interface{}, optional bool) error {
	if err := c.ShouldBindJSON(req); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", app.ErrInvalidInput, err)
	}
	return nil
}
