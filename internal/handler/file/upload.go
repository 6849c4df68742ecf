package file

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"parley/internal/handler"
	"parley/internal/service"
)

// multipartOverhead multipart 边界与表单字段的余量
const multipartOverhead = 1 << 20

// Upload 上传文件
// @Summary      上传文件
// @Description  通过 multipart/form-data 上传，扩展名和大小受配置限制
// @Tags         文件
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file            formData  file    true   "上传的文件"
// @Param        conversationId  formData  string  false  "关联会话ID"
// @Success      201             {object}  map[string]interface{}
// @Failure      400             {object}  handler.ErrorResponse
// @Failure      500             {object}  handler.ErrorResponse
// @Router       /api/v1/files/upload [post]
func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handler.Error(c, fmt.Errorf("%w: file exceeds %d bytes", service.ErrInvalidInput, h.maxSize))
			return
		}
		handler.BadRequest(c, err)
		return
	}

	src, err := fh.Open()
	if err != nil {
		handler.BadRequest(c, err)
		return
	}
	defer src.Close()

	res, err := h.fileService.Upload(c.Request.Context(), service.UploadInput{
		UserID:         handler.UserID(c),
		ConversationID: c.PostForm("conversationId"),
		FileName:       fh.Filename,
		ContentType:    fh.Header.Get("Content-Type"),
		Data:           src,
	})
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.Success(c, http.StatusCreated, "file uploaded", res)
}
