package config

import (
	"fmt"
	"os"
	"strings"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr    string
	Port          string
	DatabasePath  string
	JWTSecret     string
	GinMode       string
	ImageDir      string
	ImageURLPath  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	BootstrapUserName string
	BootstrapPassword string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "diary.db"
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		jwtSecret = "kokorolog-dev-secret"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	imageDir := strings.TrimSpace(os.Getenv("IMAGE_DIR"))
	if imageDir == "" {
		imageDir = "images"
	}

	imageURLPath := strings.TrimSpace(os.Getenv("IMAGE_URL_PATH"))
	if imageURLPath == "" {
		imageURLPath = "/images"
	}

	openAIBaseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if openAIBaseURL == "" {
		openAIBaseURL = "https://api.openai.com/v1"
	}

	openAIModel := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if openAIModel == "" {
		openAIModel = "gpt-4o-mini"
	}

	return AppConfig{
		ListenAddr:    listenAddr,
		Port:          port,
		DatabasePath:  databasePath,
		JWTSecret:     jwtSecret,
		GinMode:       ginMode,
		ImageDir:      imageDir,
		ImageURLPath:  imageURLPath,
		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL: openAIBaseURL,
		OpenAIModel:   openAIModel,

		BootstrapUserName: strings.TrimSpace(os.Getenv("BOOTSTRAP_USER_NAME")),
		BootstrapPassword: strings.TrimSpace(os.Getenv("BOOTSTRAP_PASSWORD")),
	}
}
