package file

import (
	"parley/internal/service"
)

// Handler 文件处理器
type Handler struct {
	fileService *service.FileService
	maxSize     int64
}

// NewHandler 创建文件处理器，maxSize 用于在读取请求体前拒绝超大上传
func NewHandler(fileService *service.FileService, maxSize int64) *Handler {
	if maxSize <= 0 {
		maxSize = service.DefaultMaxUploadSize
	}
	return &Handler{
		fileService: fileService,
		maxSize:     maxSize,
	}
}
