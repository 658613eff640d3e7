package handler

import (
	"net/http"

	"github.com/blues/trustfunds/internal/logic"
	"github.com/blues/trustfunds/internal/middleware"
	"github.com/gin-gonic/gin"
)

type ForumHandler struct {
	forumLogic *logic.ForumLogic
}

func NewForumHandler(forumLogic *logic.ForumLogic) *ForumHandler {
	return &ForumHandler{forumLogic: forumLogic}
}

// GetMessages 众筹下的全部留言
func (h *ForumHandler) GetMessages(c *gin.Context) {
	messages, err := h.forumLogic.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Messages fetched successfully!", messages)
}

// SendMessage 发送留言
func (h *ForumHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	message, err := h.forumLogic.Send(c.Request.Context(), c.Param("id"), middleware.UserID(c), logic.MessageInput{
		Sender:  req.Sender,
		Date:    req.Date,
		Message: req.Message,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Message sent successfully!", message)
}
