package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrNoSecret = errors.New("admin secret not configured")

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func VerifyPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// AdminGate 校验共享的管理员密码。进程内只保存 bcrypt 哈希，不保存明文。
type AdminGate struct {
	hash string
}

// NewAdminGate 优先使用已有的 bcrypt 哈希，否则在启动时对明文密码做一次哈希。
func NewAdminGate(secret, hash string) (*AdminGate, error) {
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, err
		}
		return &AdminGate{hash: hash}, nil
	}
	if secret == "" {
		return nil, ErrNoSecret
	}
	h, err := HashPassword(secret)
	if err != nil {
		return nil, err
	}
	return &AdminGate{hash: h}, nil
}

func (g *AdminGate) Verify(password string) bool {
	if g == nil || password == "" {
		return false
	}
	return VerifyPassword(g.hash, password)
}
