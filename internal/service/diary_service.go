package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kokorolog/internal/db"
	"gorm.io/gorm"
)

var (
	ErrDiaryNotFound = errors.New("diary not found")
	ErrInvalidDateID = errors.New("invalid date id")
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// DefaultEmotionScore 与 DefaultIcon 是新建日记时的初始派生值，
	// 也是模型输出缺少对应字段时的兜底值。
	DefaultEmotionScore = 3
	DefaultIcon         = "📝"

	dateIDLayout = "2006-01-02"
)

// Turn 表示一天对话中的一条消息。
// Image 仅在用户上传了图片的用户消息上出现，存储附件文件名。
type Turn struct {
	Role    string  `json:"role"`
	Content string  `json:"content"`
	Image   *string `json:"image,omitempty"`
}

// DiarySummary 是日历视图使用的单日摘要。
type DiarySummary struct {
	DateID       string
	EmotionScore int
	Icon         string
}

// DiaryService 负责按 (用户, 日期) 读写日记记录。
type DiaryService struct {
	db *gorm.DB
}

// NewDiaryService creates a DiaryService instance.
func NewDiaryService(gdb *gorm.DB) *DiaryService {
	return &DiaryService{db: gdb}
}

// WithTx 返回一个在给定事务上操作的 DiaryService，
// 供调用方把日记写入并入更大的事务。
func (s *DiaryService) WithTx(tx *gorm.DB) *DiaryService {
	return &DiaryService{db: tx}
}

// ValidateDateID 校验日期串是否符合 YYYY-MM-DD。
func ValidateDateID(dateID string) error {
	if _, err := time.Parse(dateIDLayout, dateID); err != nil {
		return ErrInvalidDateID
	}
	return nil
}

// PreviousDateID 返回前一个日历日，纯日历减法，不做时区调整。
func PreviousDateID(dateID string) (string, error) {
	day, err := time.Parse(dateIDLayout, dateID)
	if err != nil {
		return "", ErrInvalidDateID
	}
	return day.AddDate(0, 0, -1).Format(dateIDLayout), nil
}

// EncodeTurns 将对话序列编码为持久化用的 JSON 文本。
func EncodeTurns(turns []Turn) (string, error) {
	if turns == nil {
		turns = []Turn{}
	}
	raw, err := json.Marshal(turns)
	if err != nil {
		return "", fmt.Errorf("编码对话记录失败: %w", err)
	}
	return string(raw), nil
}

// DecodeTurns 解析持久化的 JSON 文本，空串视为空对话。
func DecodeTurns(messagesJSON string) ([]Turn, error) {
	if messagesJSON == "" {
		return []Turn{}, nil
	}
	var turns []Turn
	if err := json.Unmarshal([]byte(messagesJSON), &turns); err != nil {
		return nil, fmt.Errorf("解析对话记录失败: %w", err)
	}
	return turns, nil
}

// Get 返回指定用户指定日期的日记，不存在时返回 ErrDiaryNotFound。
func (s *DiaryService) Get(userID uint, dateID string) (*db.Diary, error) {
	var diary db.Diary
	if err := s.db.Where("user_id = ? AND date_id = ?", userID, dateID).First(&diary).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDiaryNotFound
		}
		return nil, err
	}
	return &diary, nil
}

// SaveTurns 将整天的对话与派生元数据作为一个事务写入：
// 已存在的记录整体覆盖，不存在则创建。
func (s *DiaryService) SaveTurns(userID uint, dateID string, turns []Turn, emotionScore int, title, icon string) (*db.Diary, error) {
	encoded, err := EncodeTurns(turns)
	if err != nil {
		return nil, err
	}

	var saved db.Diary
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var diary db.Diary
		findErr := tx.Where("user_id = ? AND date_id = ?", userID, dateID).First(&diary).Error
		if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			diary = db.Diary{UserID: userID, DateID: dateID}
		}

		diary.MessagesJSON = encoded
		diary.EmotionScore = emotionScore
		diary.Title = title
		diary.Icon = icon

		if err := tx.Save(&diary).Error; err != nil {
			return err
		}
		saved = diary
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// ReplaceHistory 原样替换已有日记的对话序列，不改动派生元数据；
// 日记不存在时返回 ErrDiaryNotFound，不会创建新记录。
func (s *DiaryService) ReplaceHistory(userID uint, dateID string, turns []Turn) error {
	encoded, err := EncodeTurns(turns)
	if err != nil {
		return err
	}

	result := s.db.Model(&db.Diary{}).
		Where("user_id = ? AND date_id = ?", userID, dateID).
		Update("messages_json", encoded)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDiaryNotFound
	}
	return nil
}

// ListAll 返回用户全部日记的日历摘要。
func (s *DiaryService) ListAll(userID uint) ([]DiarySummary, error) {
	var diaries []db.Diary
	if err := s.db.Where("user_id = ?", userID).Order("date_id asc").Find(&diaries).Error; err != nil {
		return nil, err
	}

	summaries := make([]DiarySummary, 0, len(diaries))
	for _, diary := range diaries {
		summaries = append(summaries, DiarySummary{
			DateID:       diary.DateID,
			EmotionScore: diary.EmotionScore,
			Icon:         diary.Icon,
		})
	}
	return summaries, nil
}

// DeleteAll 级联删除用户的全部日记（物理删除）。
func (s *DiaryService) DeleteAll(userID uint) error {
	return s.db.Unscoped().Where("user_id = ?", userID).Delete(&db.Diary{}).Error
}
