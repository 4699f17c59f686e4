package handler

import (
	"github.com/kokorolog/internal/config"
	"github.com/kokorolog/internal/service"
	"gorm.io/gorm"
)

// API 聚合 HTTP 处理器共享的依赖
type API struct {
	db        *gorm.DB
	cfg       config.AppConfig
	diaries   *service.DiaryService
	chats     service.TurnCompleter
	summaries service.DaySummarizer
}

// NewAPI 构建处理器集合并装配各项服务
func NewAPI(gdb *gorm.DB, cfg config.AppConfig) *API {
	diaries := service.NewDiaryService(gdb)
	builder := service.NewContextBuilder(diaries)
	attachments := service.NewAttachmentService(cfg.ImageDir)

	return &API{
		db:      gdb,
		cfg:     cfg,
		diaries: diaries,
		chats: service.NewChatService(diaries, builder, attachments,
			cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel),
		summaries: service.NewSummaryService(diaries,
			cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel),
	}
}
