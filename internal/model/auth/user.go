package auth

import (
	"regexp"
	"strings"
	"time"
)

// User 用户实体
// ID使用UUID格式（string），避免ObjectID转换的麻烦
type User struct {
	ID           string    `bson:"_id" json:"id"`                                         // UUID格式的ID
	Username     string    `bson:"username" json:"username"`                              // 用户名（唯一）
	Email        string    `bson:"email" json:"email"`                                    // 邮箱（唯一，小写）
	PasswordHash string    `bson:"password_hash" json:"-"`                                // 密码（加密存储，不返回）
	ProfileImage string    `bson:"profile_image,omitempty" json:"profileImage,omitempty"` // 头像
	Theme        Theme     `bson:"theme" json:"theme"`                                    // 主题
	Language     string    `bson:"language" json:"language"`                              // 语言
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

// Collection 返回集合名称
func (u *User) Collection() string {
	return "users"
}

// Theme 界面主题
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// IsValid 检查主题是否有效
func (t Theme) IsValid() bool {
	return t == ThemeLight || t == ThemeDark
}

const (
	DefaultLanguage   = "en"
	MinUsernameLength = 3
	MinPasswordLength = 6
)

var emailPattern = regexp.MustCompile(`^.+@.+\..+$`)

// NormalizeEmail 邮箱统一小写并去掉首尾空白
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail 校验邮箱形状
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidUsername 用户名去掉空白后至少3个字符
func ValidUsername(username string) bool {
	return len([]rune(strings.TrimSpace(username))) >= MinUsernameLength
}

// UserUpdate 用户资料部分更新
type UserUpdate struct {
	Username     *string
	Theme        *Theme
	Language     *string
	ProfileImage *string
}

// Apply 将修改应用到用户
func (u UserUpdate) Apply(user *User) {
	if u.Username != nil {
		user.Username = *u.Username
	}
	if u.Theme != nil {
		user.Theme = *u.Theme
	}
	if u.Language != nil {
		user.Language = *u.Language
	}
	if u.ProfileImage != nil {
		user.ProfileImage = *u.ProfileImage
	}
}
