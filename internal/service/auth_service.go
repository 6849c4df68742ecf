package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"parley/internal/model/auth"
	"parley/internal/pkg/id"
	"parley/internal/pkg/jwt"
	"parley/internal/pkg/password"
	"parley/internal/repository"
)

// AuthService 认证服务
type AuthService struct {
	users repository.UserStore
	jwt   *jwt.JWT
}

// NewAuthService 创建认证服务
func NewAuthService(users repository.UserStore, jwtSecret string, accessTokenExpiry time.Duration) *AuthService {
	return &AuthService{
		users: users,
		jwt:   jwt.NewJWT(jwtSecret, accessTokenExpiry),
	}
}

// AuthResult 注册/登录结果
type AuthResult struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// Register 用户注册，用户名或邮箱重复时返回 ErrConflict
func (s *AuthService) Register(ctx context.Context, username, email, pwd string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	email = auth.NormalizeEmail(email)

	if !auth.ValidUsername(username) {
		return nil, fmt.Errorf("%w: username must be at least %d characters", ErrInvalidInput, auth.MinUsernameLength)
	}
	if !auth.ValidEmail(email) {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if len(pwd) < auth.MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, auth.MinPasswordLength)
	}
	if len(pwd) > password.MaxLength {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, password.MaxLength)
	}

	hashed, err := password.Hash(pwd)
	if err != nil {
		log.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &auth.User{
		ID:           id.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		Theme:        auth.ThemeLight,
		Language:     auth.DefaultLanguage,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			log.Error().Err(err).Msg("failed to create user")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.issue(user)
}

// Login 邮箱密码登录，用户不存在与密码错误统一返回 ErrUnauthorized
func (s *AuthService) Login(ctx context.Context, email, pwd string) (*AuthResult, error) {
	user, err := s.users.FindUserByEmail(ctx, auth.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		log.Error().Err(err).Msg("failed to find user")
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !password.Verify(pwd, user.PasswordHash) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *auth.User) (*AuthResult, error) {
	token, err := s.jwt.GenerateToken(user.ID, user.Username)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to generate access token")
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// ValidateToken 校验访问令牌
func (s *AuthService) ValidateToken(token string) (*jwt.Claims, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return claims, nil
}

// Me 获取当前用户
func (s *AuthService) Me(ctx context.Context, userID string) (*auth.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// UpdateProfileInput 资料更新参数，nil 字段保持不变
type UpdateProfileInput struct {
	Username     *string
	Theme        *string
	Language     *string
	ProfileImage *string
}

// UpdateProfile 更新用户资料
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*auth.User, error) {
	var update auth.UserUpdate
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if !auth.ValidUsername(username) {
			return nil, fmt.Errorf("%w: username must be at least %d characters", ErrInvalidInput, auth.MinUsernameLength)
		}
		update.Username = &username
	}
	if in.Theme != nil {
		theme := auth.Theme(*in.Theme)
		if !theme.IsValid() {
			return nil, fmt.Errorf("%w: theme must be light or dark", ErrInvalidInput)
		}
		update.Theme = &theme
	}
	if in.Language != nil {
		language := strings.TrimSpace(*in.Language)
		if language == "" {
			return nil, fmt.Errorf("%w: language must not be empty", ErrInvalidInput)
		}
		update.Language = &language
	}
	update.ProfileImage = in.ProfileImage

	user, err := s.users.UpdateUser(ctx, userID, update)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}
