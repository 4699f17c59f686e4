package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kokorolog/internal/service"
)

type summaryRequest struct {
	DateID string `json:"date_id"`
}

// PostSummary 为指定日期生成当天总结，流程只读。
func (a *API) PostSummary(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未认证")
		return
	}

	var req summaryRequest
	if !bindJSON(c, &req, "请求体格式错误") {
		return
	}

	summary, err := a.summaries.Summarize(c.Request.Context(), userID, req.DateID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDateID):
			respondError(c, http.StatusBadRequest, "日期格式错误，应为 YYYY-MM-DD")
		case errors.Is(err, service.ErrDiaryNotFound):
			respondError(c, http.StatusNotFound, "该日期没有日记")
		case errors.Is(err, service.ErrModelInvocation):
			respondError(c, http.StatusBadGateway, "AI 服务暂时不可用")
		default:
			respondError(c, http.StatusInternalServerError, "生成总结失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
