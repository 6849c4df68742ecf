package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxLength bcrypt 只处理前 72 字节
const MaxLength = 72

// ErrTooLong 密码超过 bcrypt 可处理的长度
var ErrTooLong = errors.New("password exceeds 72 bytes")

// Hash 加密密码
func Hash(password string) (string, error) {
	if len(password) > MaxLength {
		return "", ErrTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify 验证密码，空哈希一律不通过
func Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
