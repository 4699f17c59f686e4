package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const summarySystemPrompt = `你是一位温柔的日记伙伴。请阅读用户一天的对话记录，
生成一段简短的当天回顾，并附上一句鼓励的话。

【重要】
回复必须且只能是以下 JSON 格式：
{
  "summary": "当天回顾与鼓励"
}`

// 模型漏掉 summary 字段时的兜底文案
const summaryFallback = "今天也辛苦了，明天继续加油吧！"

// DaySummarizer 定义单日总结能力，便于在业务层注入不同实现。
type DaySummarizer interface {
	Summarize(ctx context.Context, userID uint, dateID string) (string, error)
}

// SummaryService 基于当天完整对话生成总结，整个流程只读，不修改日记。
type SummaryService struct {
	diaries *DiaryService
	client  *aiChatClient
}

// NewSummaryService 构造默认的 SummaryService。
func NewSummaryService(diaries *DiaryService, apiKey, baseURL, model string) *SummaryService {
	return &SummaryService{diaries: diaries, client: newAIChatClient(apiKey, baseURL, model)}
}

// SetHTTPClient 覆盖模型客户端的 HTTP 实现，主要用于测试。
func (s *SummaryService) SetHTTPClient(client httpDoer) {
	s.client.SetHTTPClient(client)
}

// SetModelBaseURL 覆盖模型接口地址，主要用于测试。
func (s *SummaryService) SetModelBaseURL(base string) {
	s.client.SetBaseURL(base)
}

// Summarize 为指定日期生成总结文本。
// 日记不存在时返回 ErrDiaryNotFound；模型调用失败时返回 ErrModelInvocation。
func (s *SummaryService) Summarize(ctx context.Context, userID uint, dateID string) (string, error) {
	if err := ValidateDateID(dateID); err != nil {
		return "", err
	}

	diary, err := s.diaries.Get(userID, dateID)
	if err != nil {
		return "", err
	}

	turns, err := DecodeTurns(diary.MessagesJSON)
	if err != nil {
		return "", err
	}

	var prompt strings.Builder
	prompt.WriteString(summarySystemPrompt)
	prompt.WriteString("\n\n【当天的对话 (")
	prompt.WriteString(dateID)
	prompt.WriteString(")】\n")
	prompt.WriteString(RenderTranscript(turns))

	raw, err := s.client.Chat(ctx, []chatMessage{{Role: RoleUser, Content: prompt.String()}}, true)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelInvocation, err)
	}

	var payload struct {
		Summary *string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", fmt.Errorf("%w: 模型输出不是有效 JSON: %v", ErrModelInvocation, err)
	}

	if payload.Summary == nil || strings.TrimSpace(*payload.Summary) == "" {
		return summaryFallback, nil
	}
	return *payload.Summary, nil
}
