package db

import (
	"gorm.io/gorm"
)

// Diary 定义了按 (用户, 日期) 存储的日记模型
// UserID + DateID 采用唯一索引，保证每个用户每天至多一条记录
// MessagesJSON 存储整天的对话序列（JSON 编码），EmotionScore/Title/Icon
// 为每轮对话后由模型整体覆盖的派生字段
type Diary struct {
	gorm.Model
	// 级联删除由 DiaryService.DeleteAll 在事务里完成，
	// 不依赖 sqlite 的外键开关
	UserID       uint   `gorm:"index;index:idx_diary_user_date,unique;not null"`
	User         User
	DateID       string `gorm:"size:10;index:idx_diary_user_date,unique;not null"`
	MessagesJSON string `gorm:"type:text"`
	EmotionScore int    `gorm:"default:3"`
	Title        string
	Icon         string
}

// TableName 重写确保唯一索引作用到 user_id + date_id
func (Diary) TableName() string {
	return "diaries"
}
