package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kokorolog/internal/service"
)

// GetCalendar 返回当前用户全部日记的 {日期: {score, icon}} 映射。
func (a *API) GetCalendar(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未认证")
		return
	}

	summaries, err := a.diaries.ListAll(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查询日历失败")
		return
	}

	calendar := make(map[string]gin.H, len(summaries))
	for _, summary := range summaries {
		calendar[summary.DateID] = gin.H{"score": summary.EmotionScore, "icon": summary.Icon}
	}

	c.JSON(http.StatusOK, calendar)
}

// GetHistory 返回指定日期的对话记录；日期无记录时返回空结构而非 404。
func (a *API) GetHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未认证")
		return
	}

	dateID := c.Query("date_id")
	if err := service.ValidateDateID(dateID); err != nil {
		respondError(c, http.StatusBadRequest, "日期格式错误，应为 YYYY-MM-DD")
		return
	}

	diary, err := a.diaries.Get(userID, dateID)
	if err != nil {
		if errors.Is(err, service.ErrDiaryNotFound) {
			c.JSON(http.StatusOK, gin.H{"messages": []service.Turn{}, "title": "", "icon": ""})
			return
		}
		respondError(c, http.StatusInternalServerError, "查询日记失败")
		return
	}

	turns, err := service.DecodeTurns(diary.MessagesJSON)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "解析对话记录失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": turns, "title": diary.Title, "icon": diary.Icon})
}

type updateHistoryRequest struct {
	DateID   string         `json:"date_id"`
	Messages []service.Turn `json:"messages"`
}

// UpdateHistory 原样替换已有日记的对话记录；日记不存在时返回 404，不创建。
func (a *API) UpdateHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未认证")
		return
	}

	var req updateHistoryRequest
	if !bindJSON(c, &req, "请求体格式错误") {
		return
	}

	if err := service.ValidateDateID(req.DateID); err != nil {
		respondError(c, http.StatusBadRequest, "日期格式错误，应为 YYYY-MM-DD")
		return
	}

	if err := a.diaries.ReplaceHistory(userID, req.DateID, req.Messages); err != nil {
		if errors.Is(err, service.ErrDiaryNotFound) {
			respondError(c, http.StatusNotFound, "该日期没有日记")
			return
		}
		respondError(c, http.StatusInternalServerError, "更新对话记录失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
