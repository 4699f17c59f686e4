package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrAIAPIKeyMissing = errors.New("AI API Key 未配置")

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

// chatContentPart 用于带图片的多模态消息内容。
type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type aiChatClient struct {
	http    httpDoer
	apiKey  string
	baseURL string
	model   string
}

func newAIChatClient(apiKey, baseURL, model string) *aiChatClient {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &aiChatClient{
		http:    &http.Client{Timeout: 180 * time.Second},
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: base,
		model:   model,
	}
}

func (c *aiChatClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 180 * time.Second}
		return
	}
	c.http = client
}

func (c *aiChatClient) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

// Chat 调用 chat completions 接口并返回首个回复文本。
// jsonObject 为 true 时要求模型强制返回 JSON 对象。
func (c *aiChatClient) Chat(ctx context.Context, messages []chatMessage, jsonObject bool) (string, error) {
	if c.apiKey == "" {
		return "", ErrAIAPIKeyMissing
	}

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}

	payload := chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
	}
	if jsonObject {
		payload.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("构造请求失败: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("创建 OpenAI 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "kokorolog-ai/1.0")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("请求 OpenAI 接口失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("读取 OpenAI 响应失败: %w", err)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", fmt.Errorf("解析 OpenAI 响应失败: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		errMsg := strings.TrimSpace(completion.Error.Message)
		if errMsg == "" {
			errMsg = strings.TrimSpace(string(respBody))
		}
		if errMsg == "" {
			errMsg = resp.Status
		}
		return "", fmt.Errorf("OpenAI 接口返回错误：%s", errMsg)
	}

	if len(completion.Choices) == 0 {
		return "", errors.New("OpenAI 接口未返回结果")
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// diaryModelResult 是每轮对话要求模型返回的结构化结果。
type diaryModelResult struct {
	Reply        string
	EmotionScore int
	Title        string
	Icon         string
}

// parseDiaryResult 严格按 JSON 解析模型输出，缺失字段使用兜底值，
// 情绪分数始终收敛到 [1,5]。
func parseDiaryResult(raw string) (diaryModelResult, error) {
	var payload struct {
		Reply        *string `json:"reply"`
		EmotionScore *int    `json:"emotion_score"`
		Title        *string `json:"title"`
		Icon         *string `json:"icon"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return diaryModelResult{}, fmt.Errorf("模型输出不是有效 JSON: %w", err)
	}

	result := diaryModelResult{
		EmotionScore: DefaultEmotionScore,
		Icon:         DefaultIcon,
	}
	if payload.Reply != nil {
		result.Reply = *payload.Reply
	}
	if payload.EmotionScore != nil {
		result.EmotionScore = *payload.EmotionScore
	}
	if payload.Title != nil {
		result.Title = *payload.Title
	}
	if payload.Icon != nil && *payload.Icon != "" {
		result.Icon = *payload.Icon
	}

	if result.EmotionScore < 1 {
		result.EmotionScore = 1
	}
	if result.EmotionScore > 5 {
		result.EmotionScore = 5
	}
	return result, nil
}
