package handler

import (
	"github.com/gin-gonic/gin"

	"sam-assistant/internal/app"
	"sam-assistant/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req ChatRequest
	if err := bindJSON(c, &req, false); err != nil {
		writeError(c, err)
		return
	}

	reply, err := h.chatService.SendMessage(c.Request.Context(), app.ChatInput{
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{
		"sessionId": reply.SessionID,
		"reply":     reply.Reply,
		"sources":   reply.Sources,
		"grounded":  reply.Grounded,
	})
}
