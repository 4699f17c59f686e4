package service

import (
	"errors"
	"fmt"
	"strings"
)

// StartSentinel 是客户端打开当天会话时发送的占位内容，
// 自身永远不会被持久化。
const StartSentinel = "__START__"

const basePersonaPrompt = `你是一位"善于倾听、像朋友一样的日记采访者"。
请在共情用户回答的同时，抛出让对话自然延续的问题。
保持礼貌、温和的语气。

【重要】
回复必须且只能是以下 JSON 格式：
{
  "reply": "AI 的回复文本",
  "emotion_score": 1到5的整数,
  "title": "概括当天日记内容、10字以内的标题",
  "icon": "象征当天内容的1个 emoji"
}`

const startTriggerInstruction = "（用户刚打开了应用。请先向用户问好，并务必问一句「今天过得怎么样？」）"

// ContextBuilder 负责组装发给模型的消息列表：
// 人设指令 + 昨日对话附录 + 当天请求中的全部消息。
type ContextBuilder struct {
	diaries *DiaryService
}

// NewContextBuilder creates a ContextBuilder instance.
func NewContextBuilder(diaries *DiaryService) *ContextBuilder {
	return &ContextBuilder{diaries: diaries}
}

// RenderTranscript 将对话序列渲染为带角色标签的纯文本。
func RenderTranscript(turns []Turn) string {
	var builder strings.Builder
	for _, turn := range turns {
		label := "AI"
		if turn.Role == RoleUser {
			label = "用户"
		}
		builder.WriteString(label)
		builder.WriteString(": ")
		builder.WriteString(turn.Content)
		builder.WriteString("\n")
	}
	return builder.String()
}

// Build 组装一轮对话的完整模型输入。
// 返回的消息列表为：system 人设（含昨日附录）+ 请求内全部消息（按序）。
// 当请求的最后一条消息内容为 StartSentinel 时，替换为固定的开场指令并标记触发轮。
// rawImage 非空时，最后一条用户消息改写为「文本 + 内联图片」的多模态内容；
// 模型只会收到原始 Base64 数据，不会收到存储文件名。
func (b *ContextBuilder) Build(userID uint, dateID string, incoming []Turn, rawImage string) ([]chatMessage, bool, error) {
	if err := ValidateDateID(dateID); err != nil {
		return nil, false, err
	}
	if len(incoming) == 0 {
		return nil, false, errors.New("消息列表为空")
	}

	systemPrompt := basePersonaPrompt

	prevDateID, err := PreviousDateID(dateID)
	if err != nil {
		return nil, false, err
	}

	if prev, err := b.diaries.Get(userID, prevDateID); err == nil {
		prevTurns, decodeErr := DecodeTurns(prev.MessagesJSON)
		if decodeErr != nil {
			return nil, false, decodeErr
		}
		if transcript := RenderTranscript(prevTurns); transcript != "" {
			systemPrompt += fmt.Sprintf("\n\n【昨天的对话 (%s)】\n%s", prevDateID, transcript)
		}
	} else if !errors.Is(err, ErrDiaryNotFound) {
		return nil, false, err
	}

	turns := make([]Turn, len(incoming))
	copy(turns, incoming)

	isTrigger := false
	last := len(turns) - 1
	if turns[last].Content == StartSentinel {
		isTrigger = true
		turns[last].Content = startTriggerInstruction
	}

	messages := make([]chatMessage, 0, len(turns)+1)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	for i, turn := range turns {
		if i == last && rawImage != "" {
			messages = append(messages, chatMessage{
				Role: RoleUser,
				Content: []chatContentPart{
					{Type: "text", Text: turn.Content},
					{Type: "image_url", ImageURL: &chatImageURL{URL: "data:image/jpeg;base64," + rawImage}},
				},
			})
			continue
		}
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}

	return messages, isTrigger, nil
}
