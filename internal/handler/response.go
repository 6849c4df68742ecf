package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"parley/internal/pkg/ctxutil"
	response "parley/internal/pkg/http"
	"parley/internal/repository"
	"parley/internal/service"
)

// ErrorResponse 错误响应
type ErrorResponse = response.ErrorResponse

// Success 写入成功响应
func Success(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, response.NewSuccessResponse(message, data))
}

// BadRequest 请求体无法解析
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.NewErrorResponse(response.CodeInvalidInput, "Invalid request body", err.Error()))
}

// Error 将服务层错误映射为 HTTP 响应
// 未识别的错误只返回通用信息，细节写入日志
func Error(c *gin.Context, err error) {
	status, resp := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString("request_id")).
			Msg("request failed")
	}
	c.JSON(status, resp)
}

func errorResponse(err error) (int, *ErrorResponse) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, response.NewErrorResponse(response.CodeInvalidInput, "Invalid input", err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, response.NewErrorResponse(response.CodeUnauthorized, "Unauthorized")
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, response.NewErrorResponse(response.CodeNotFound, "Not found")
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, response.NewErrorResponse(response.CodeConflict, "Already exists")
	default:
		return http.StatusInternalServerError, response.NewErrorResponse(response.CodeInternal, "Internal server error")
	}
}

// UserID 返回认证中间件注入的用户ID
func UserID(c *gin.Context) string {
	userID, _ := ctxutil.GetUserID(c.Request.Context())
	return userID
}
