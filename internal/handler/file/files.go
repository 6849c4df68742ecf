package file

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"parley/internal/handler"
)

// List 列出当前用户的文件
// @Summary      文件列表
// @Tags         文件
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/files [get]
func (h *Handler) List(c *gin.Context) {
	files, err := h.fileService.List(c.Request.Context(), handler.UserID(c))
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "success", files)
}

// ListByConversation 列出某个会话的文件
// @Summary      会话文件列表
// @Tags         文件
// @Produce      json
// @Security     BearerAuth
// @Param        conversationId  path      string  true  "会话ID"
// @Success      200             {object}  map[string]interface{}
// @Router       /api/v1/files/conversation/{conversationId} [get]
func (h *Handler) ListByConversation(c *gin.Context) {
	files, err := h.fileService.ListByConversation(c.Request.Context(), handler.UserID(c), c.Param("conversationId"))
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "success", files)
}

// Download 下载文件
// @Summary      下载文件
// @Tags         文件
// @Produce      octet-stream
// @Security     BearerAuth
// @Param        id   path      string  true  "文件ID"
// @Success      200  {file}    file
// @Failure      404  {object}  handler.ErrorResponse
// @Router       /api/v1/files/download/{id} [get]
func (h *Handler) Download(c *gin.Context) {
	res, err := h.fileService.Download(c.Request.Context(), handler.UserID(c), c.Param("id"))
	if err != nil {
		handler.Error(c, err)
		return
	}
	defer res.Data.Close()

	c.Header("Content-Type", res.File.MimeType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.File.OriginalName))
	c.Header("Content-Length", fmt.Sprintf("%d", res.File.Size))
	c.Status(http.StatusOK)

	// 流式传输文件，响应头已写出，出错只能记录日志
	if _, err := io.Copy(c.Writer, res.Data); err != nil {
		log.Warn().Err(err).Str("file_id", res.File.ID).Msg("failed to stream file")
	}
}

// Delete 删除文件
// @Summary      删除文件
// @Tags         文件
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "文件ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  handler.ErrorResponse
// @Failure      500  {object}  handler.ErrorResponse
// @Router       /api/v1/files/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.fileService.Delete(c.Request.Context(), handler.UserID(c), c.Param("id")); err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusOK, "file deleted", gin.H{"success": true})
}
