package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kokorolog/internal/service"
)

type chatRequest struct {
	DateID   string         `json:"date_id"`
	Messages []service.Turn `json:"messages"`
	NewImage string         `json:"new_image"`
}

// PostChat 执行一轮完整的对话生命周期并返回模型回复。
func (a *API) PostChat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未认证")
		return
	}

	var req chatRequest
	if !bindJSON(c, &req, "请求体格式错误") {
		return
	}

	result, err := a.chats.CompleteTurn(c.Request.Context(), userID, service.ChatTurnInput{
		DateID:   req.DateID,
		Messages: req.Messages,
		NewImage: req.NewImage,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDateID):
			respondError(c, http.StatusBadRequest, "日期格式错误，应为 YYYY-MM-DD")
		case errors.Is(err, service.ErrEmptyMessages):
			respondError(c, http.StatusBadRequest, "消息列表不能为空")
		case errors.Is(err, service.ErrModelInvocation):
			respondError(c, http.StatusBadGateway, "AI 服务暂时不可用")
		default:
			respondError(c, http.StatusInternalServerError, "处理对话失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": result.Reply, "title": result.Title, "icon": result.Icon})
}
