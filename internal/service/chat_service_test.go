package service

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"

	"gorm.io/gorm"
)

func newChatServiceForTest(t *testing.T, gdb *gorm.DB, handler func(*http.Request) (*http.Response, error)) (*ChatService, *DiaryService) {
	t.Helper()
	diaries := NewDiaryService(gdb)
	builder := NewContextBuilder(diaries)
	attachments := NewAttachmentService(t.TempDir())
	svc := NewChatService(diaries, builder, attachments, "sk-test", "https://openai.test/v1", "gpt-4o-mini")
	svc.SetHTTPClient(fakeHTTPClient{handler: handler})
	return svc, diaries
}

func TestCompleteTurnAppendsUserAndAssistant(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	userID := seedUser(t, gdb, "alice")
	svc, diaries := newChatServiceForTest(t, gdb, func(r *http.Request) (*http.Response, error) {
		return completionResponse(t, `{"reply":"那真是辛苦了！都做了些什么呢？","emotion_score":4,"title":"忙碌的一天","icon":"💼"}`), nil
	})

	result, err := svc.CompleteTurn(context.Background(), userID, ChatTurnInput{
		DateID:   "2024-01-01",
		Messages: []Turn{{Role: RoleUser, Content: "今天工作很忙"}},
	})
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if result.Reply == "" || result.Title != "忙碌的一天" || result.Icon != "💼" {
		t.Fatalf("unexpected result: %+v", result)
	}

	diary, err := diaries.Get(userID, "2024-01-01")
	if err != nil {
		t.Fatalf("diary should exist: %v", err)
	}
	turns, err := DecodeTurns(diary.MessagesJSON)
	if err != nil {
		t.Fatalf("failed to decode turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("normal turn should append exactly 2 messages, got %d", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Content != "今天工作很忙" {
		t.Fatalf("unexpected user turn: %+v", turns[0])
	}
	if turns[1].Role != RoleAssistant {
		t.Fatalf("unexpected assistant turn: %+v", turns[1])
	}
	if diary.EmotionScore != 4 {
		t.Fatalf("score should be overwritten to 4, got %d", diary.EmotionScore)
	}
}

func TestCompleteTurnTriggerAppendsAssistantOnly(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	userID := seedUser(t, gdb, "alice")
	svc, diaries := newChatServiceForTest(t, gdb, func(r *http.Request) (*http.Response, error) {
		return completionResponse(t, `{"reply":"你好呀！今天过得怎么样？","emotion_score":3,"title":"","icon":"📝"}`), nil
	})

	result, err := svc.CompleteTurn(context.Background(), userID, ChatTurnInput{
		DateID:   "2024-01-01",
		Messages: []Turn{{Role: RoleUser, Content: StartSentinel}},
	})
	if err != nil {
		t.Fatalf("trigger turn failed: %v", err)
	}
	if result.Reply == "" {
		t.Fatalf("trigger turn must return a non-empty reply")
	}

	diary, err := diaries.Get(userID, "2024-01-01")
	if err != nil {
		t.Fatalf("diary should exist: %v", err)
	}
	turns, err := DecodeTurns(diary.MessagesJSON)
	if err != nil {
		t.Fatalf("failed to decode turns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("trigger turn should persist exactly 1 message, got %d", len(turns))
	}
	if turns[0].Role != RoleAssistant {
		t.Fatalf("only the assistant turn may be persisted, got %+v", turns[0])
	}
}

func TestCompleteTurnModelFailureLeavesDiaryUntouched(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	userID := seedUser(t, gdb, "alice")
	diaries := NewDiaryService(gdb)
	if _, err := diaries.SaveTurns(userID, "2024-01-01", []Turn{{Role: RoleAssistant, Content: "已有内容"}}, 4, "旧标题", "🌧"); err != nil {
		t.Fatalf("failed to seed diary: %v", err)
	}
	before, err := diaries.Get(userID, "2024-01-01")
	if err != nil {
		t.Fatalf("failed to read seeded diary: %v", err)
	}

	svc, _ := newChatServiceForTest(t, gdb, func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	_, err = svc.CompleteTurn(context.Background(), userID, ChatTurnInput{
		DateID:   "2024-01-01",
		Messages: []Turn{{Role: RoleUser, Content: "这条不应该被保存"}},
	})
	if !errors.Is(err, ErrModelInvocation) {
		t.Fatalf("expected ErrModelInvocation, got %v", err)
	}

	after, err := diaries.Get(userID, "2024-01-01")
	if err != nil {
		t.Fatalf("diary should still exist: %v", err)
	}
	if after.MessagesJSON != before.MessagesJSON {
		t.Fatalf("history must be untouched on failure:\nbefore=%s\nafter=%s", before.MessagesJSON, after.MessagesJSON)
	}
	if after.EmotionScore != before.EmotionScore || after.Title != before.Title || after.Icon != before.Icon {
		t.Fatalf("metadata must be untouched on failure: %+v vs %+v", before, after)
	}
}

func TestCompleteTurnNonJSONModelOutputAborts(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	userID := seedUser(t, gdb, "alice")
	svc, diaries := newChatServiceForTest(t, gdb, func(r *http.Request) (*http.Response, error) {
		return completionResponse(t, "好的，我明白了！"), nil
	})

	_, err := svc.CompleteTurn(context.Background(), userID, ChatTurnInput{
		DateID:   "2024-01-01",
		Messages: []Turn{{Role: RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, ErrModelInvocation) {
		t.Fatalf("expected ErrModelInvocation, got %v", err)
	}

	if _, err := diaries.Get(userID, "2024-01-01"); !errors.Is(err, ErrDiaryNotFound) {
		t.Fatalf("no diary may be created on malformed output, got %v", err)
	}
}

func TestCompleteTurnDefaultsMissingFields(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	userID := seedUser(t, gdb, "alice")
	svc, diaries := newChatServiceForTest(t, gdb, func(r *http.Request) (*http.Response, error) {
		return completionResponse(t, `{"reply":"只回了文字"}`), nil
	})

	if _, err := svc.CompleteTurn(context.Background(), userID, ChatTurnInput{
		DateID:   "2024-01-01",
		Messages: []Turn{{Role: RoleUser, Content: "hi"}},
	}); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	diary, err := diaries.Get(userID, "2024-01-01")
	if err != nil {
		t.Fatalf("diary should exist: %v", err)
	}
	if diary.EmotionScore != DefaultEmotionScore {
		t.Fatalf("missing score should default to %d, got %d", DefaultEmotionScore, diary.EmotionScore)
	}
	if diary.Icon != DefaultIcon {
		t.Fatalf("missing icon should default to %q, got %q", DefaultIcon, diary.Icon)
	}
}

func TestCompleteTurnStoresAttachmentReference(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	userID := seedUser(t, gdb, "alice")
	svc, diaries := newChatServiceForTest(t, gdb, func(r *http.Request) (*http.Response, error) {
		return completionResponse(t, `{"reply":"好漂亮的照片！","emotion_score":5,"title":"晚霞","icon":"🌇"}`), nil
	})

	encoded := base64.StdEncoding.EncodeToString([]byte("fake image bytes"))
	if _, err := svc.CompleteTurn(context.Background(), userID, ChatTurnInput{
		DateID:   "2024-01-01",
		Messages: []Turn{{Role: RoleUser, Content: "看晚霞"}},
		NewImage: encoded,
	}); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	diary, err := diaries.Get(userID, "2024-01-01")
	if err != nil {
		t.Fatalf("diary should exist: %v", err)
	}
	turns, err := DecodeTurns(diary.MessagesJSON)
	if err != nil {
		t.Fatalf("failed to decode turns: %v", err)
	}
	if turns[0].Image == nil || *turns[0].Image == "" {
		t.Fatalf("user turn should carry the stored filename: %+v", turns[0])
	}
}

func TestCompleteTurnToleratesBrokenImagePayload(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	userID := seedUser(t, gdb, "alice")
	svc, diaries := newChatServiceForTest(t, gdb, func(r *http.Request) (*http.Response, error) {
		return completionResponse(t, `{"reply":"收到","emotion_score":3,"title":"t","icon":"📝"}`), nil
	})

	if _, err := svc.CompleteTurn(context.Background(), userID, ChatTurnInput{
		DateID:   "2024-01-01",
		Messages: []Turn{{Role: RoleUser, Content: "图片坏了"}},
		NewImage: "%%% not base64 %%%",
	}); err != nil {
		t.Fatalf("decode failure must not abort the turn: %v", err)
	}

	diary, err := diaries.Get(userID, "2024-01-01")
	if err != nil {
		t.Fatalf("diary should exist: %v", err)
	}
	turns, err := DecodeTurns(diary.MessagesJSON)
	if err != nil {
		t.Fatalf("failed to decode turns: %v", err)
	}
	if turns[0].Image != nil {
		t.Fatalf("no attachment reference expected, got %v", *turns[0].Image)
	}
}

func TestCompleteTurnRejectsEmptyMessages(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	userID := seedUser(t, gdb, "alice")
	svc, _ := newChatServiceForTest(t, gdb, nil)

	if _, err := svc.CompleteTurn(context.Background(), userID, ChatTurnInput{DateID: "2024-01-01"}); !errors.Is(err, ErrEmptyMessages) {
		t.Fatalf("expected ErrEmptyMessages, got %v", err)
	}
}
