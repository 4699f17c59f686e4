package service

import (
	"context"
	"errors"
	"fmt"
	"log"
)

var (
	ErrEmptyMessages   = errors.New("消息列表为空")
	ErrModelInvocation = errors.New("模型调用失败")
)

// ChatTurnInput 是一轮对话的请求体。
// Messages 的最后一条是新消息，其内容可以是 StartSentinel；
// NewImage 为可选的 Base64 图片数据。
type ChatTurnInput struct {
	DateID   string
	Messages []Turn
	NewImage string
}

// ChatTurnResult 是返回给调用方的结果，不包含情绪分数
// （分数只通过日历接口对外暴露）。
type ChatTurnResult struct {
	Reply string
	Title string
	Icon  string
}

// TurnCompleter 定义一轮对话的执行能力，便于在业务层注入不同实现。
type TurnCompleter interface {
	CompleteTurn(ctx context.Context, userID uint, in ChatTurnInput) (ChatTurnResult, error)
}

// ChatService 串联一轮对话的完整生命周期：
// 组装上下文 → 保存附件 → 调用模型 → 事务化提交当天记录。
type ChatService struct {
	diaries     *DiaryService
	builder     *ContextBuilder
	attachments *AttachmentService
	client      *aiChatClient
}

// NewChatService 构造默认的 ChatService。
func NewChatService(diaries *DiaryService, builder *ContextBuilder, attachments *AttachmentService, apiKey, baseURL, model string) *ChatService {
	return &ChatService{
		diaries:     diaries,
		builder:     builder,
		attachments: attachments,
		client:      newAIChatClient(apiKey, baseURL, model),
	}
}

// SetHTTPClient 覆盖模型客户端的 HTTP 实现，主要用于测试。
func (s *ChatService) SetHTTPClient(client httpDoer) {
	s.client.SetHTTPClient(client)
}

// SetModelBaseURL 覆盖模型接口地址，主要用于测试。
func (s *ChatService) SetModelBaseURL(base string) {
	s.client.SetBaseURL(base)
}

// CompleteTurn 执行一轮对话。模型调用失败时不产生任何持久化写入，
// 当天记录保持请求前的状态。
func (s *ChatService) CompleteTurn(ctx context.Context, userID uint, in ChatTurnInput) (ChatTurnResult, error) {
	if err := ValidateDateID(in.DateID); err != nil {
		return ChatTurnResult{}, err
	}
	if len(in.Messages) == 0 {
		return ChatTurnResult{}, ErrEmptyMessages
	}

	messages, isTrigger, err := s.builder.Build(userID, in.DateID, in.Messages, in.NewImage)
	if err != nil {
		return ChatTurnResult{}, err
	}

	// 附件保存失败不阻断本轮对话，只是落库时没有图片引用
	var savedImage *string
	if in.NewImage != "" {
		filename, storeErr := s.attachments.Store(in.NewImage)
		if storeErr != nil {
			log.Printf("[ATTACHMENT] 保存图片失败: %v", storeErr)
		} else {
			savedImage = &filename
		}
	}

	raw, err := s.client.Chat(ctx, messages, true)
	if err != nil {
		return ChatTurnResult{}, fmt.Errorf("%w: %v", ErrModelInvocation, err)
	}

	result, err := parseDiaryResult(raw)
	if err != nil {
		return ChatTurnResult{}, fmt.Errorf("%w: %v", ErrModelInvocation, err)
	}

	history := []Turn{}
	if diary, getErr := s.diaries.Get(userID, in.DateID); getErr == nil {
		history, err = DecodeTurns(diary.MessagesJSON)
		if err != nil {
			return ChatTurnResult{}, err
		}
	} else if !errors.Is(getErr, ErrDiaryNotFound) {
		return ChatTurnResult{}, getErr
	}

	if isTrigger {
		// 触发轮只追加 AI 回复，哨兵消息本身不持久化
		history = append(history, Turn{Role: RoleAssistant, Content: result.Reply})
	} else {
		userTurn := Turn{
			Role:    RoleUser,
			Content: in.Messages[len(in.Messages)-1].Content,
			Image:   savedImage,
		}
		history = append(history, userTurn, Turn{Role: RoleAssistant, Content: result.Reply})
	}

	if _, err := s.diaries.SaveTurns(userID, in.DateID, history, result.EmotionScore, result.Title, result.Icon); err != nil {
		return ChatTurnResult{}, err
	}

	return ChatTurnResult{Reply: result.Reply, Title: result.Title, Icon: result.Icon}, nil
}
