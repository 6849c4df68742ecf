package service

import (
	"errors"

	"parley/internal/repository"
)

var (
	// ErrInvalidInput 请求参数不合法，不会产生任何写入
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized 认证失败
	ErrUnauthorized = errors.New("unauthorized")

	// 存储层错误原样透出，便于 handler 用 errors.Is 判断
	ErrNotFound = repository.ErrNotFound
	ErrConflict = repository.ErrConflict
)
