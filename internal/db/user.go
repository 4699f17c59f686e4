package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 是日记账号，注册接口与引导种子共用该模型。
// Password 只存 bcrypt 哈希，日记通过 Diary.UserID 归属到账号。
type User struct {
	gorm.Model
	Username string `gorm:"unique;not null"`
	Password string `gorm:"not null"`
}

// HashPassword 统一注册与引导账号的口令哈希方式。
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword 比对明文口令与存储的哈希。
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

// EnsureBootstrapUser 为无客户端环境播种一个日记账号：
// 用户名与密码均非空且账号不存在时创建，已存在则保持原样。
func EnsureBootstrapUser(username, password string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing User
	err := DB.Where("username = ?", trimmedUser).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := HashPassword(trimmedPassword)
	if err != nil {
		return err
	}

	return DB.Create(&User{Username: trimmedUser, Password: hashed}).Error
}
