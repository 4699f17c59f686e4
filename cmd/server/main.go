package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/kokorolog/internal/config"
	"github.com/kokorolog/internal/db"
	"github.com/kokorolog/internal/router"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// 可选的引导账号，便于无客户端环境下快速验证
	if err := db.EnsureBootstrapUser(cfg.BootstrapUserName, cfg.BootstrapPassword); err != nil {
		log.Fatalf("failed to ensure bootstrap user: %v", err)
	}

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(cfg)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
