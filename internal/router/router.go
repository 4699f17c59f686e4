package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kokorolog/internal/config"
	"github.com/kokorolog/internal/db"
	"github.com/kokorolog/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(cfg config.AppConfig) *gin.Engine {
	r := gin.Default()

	// 附件静态文件服务，客户端通过 /images/文件名.jpg 访问
	r.Static(cfg.ImageURLPath, cfg.ImageDir)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	api := handler.NewAPI(db.DB, cfg)

	r.POST("/register", api.Register)
	r.POST("/token", api.Token)

	// 需要认证的日记路由
	auth := r.Group("")
	auth.Use(handler.AuthRequired(cfg.JWTSecret))
	{
		auth.GET("/calendar", api.GetCalendar)
		auth.GET("/history", api.GetHistory)
		auth.PUT("/history", api.UpdateHistory)
		auth.POST("/chat", api.PostChat)
		auth.POST("/summary", api.PostSummary)
		auth.DELETE("/delete_account", api.DeleteAccount)
	}

	return r
}
