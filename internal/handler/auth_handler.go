package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kokorolog/internal/auth"
	"github.com/kokorolog/internal/db"
	"gorm.io/gorm"
)

const userIDContextKey = "user_id"

const tokenTTL = 72 * time.Hour

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register 处理注册请求，用户名全局唯一，密码以 bcrypt 哈希存储。
func (a *API) Register(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req, "请求体格式错误") {
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, "用户名和密码不能为空")
		return
	}

	var existing db.User
	if err := a.db.Where("username = ?", username).First(&existing).Error; err == nil {
		respondError(c, http.StatusConflict, "用户名已存在")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, http.StatusInternalServerError, "查询用户失败")
		return
	}

	hashed, err := db.HashPassword(req.Password)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "密码处理失败")
		return
	}

	user := db.User{Username: username, Password: hashed}
	if err := a.db.Create(&user).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "创建用户失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username})
}

// Token 校验用户名密码并签发访问令牌。
func (a *API) Token(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req, "请求体格式错误") {
		return
	}

	var user db.User
	if err := a.db.Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	if !user.CheckPassword(req.Password) {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	token, err := auth.GenerateToken(user.ID, a.cfg.JWTSecret, tokenTTL)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "签发令牌失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// DeleteAccount 在同一事务里级联删除当前用户的全部日记和账号本身，
// 任一步失败则整体回滚。
func (a *API) DeleteAccount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "未认证")
		return
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		if err := a.diaries.WithTx(tx).DeleteAll(userID); err != nil {
			return err
		}
		return tx.Unscoped().Delete(&db.User{}, userID).Error
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "删除账号失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// AuthRequired 校验 Bearer 令牌并把用户 ID 写入请求上下文。
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			respondError(c, http.StatusUnauthorized, "缺少访问令牌")
			c.Abort()
			return
		}

		userID, err := auth.ParseToken(strings.TrimSpace(header[len(prefix):]), secret)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "访问令牌无效")
			c.Abort()
			return
		}

		c.Set(userIDContextKey, userID)
		c.Next()
	}
}
