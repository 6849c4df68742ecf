package conversation

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"parley/internal/handler"
	"parley/internal/service"
)

// ExportJSON 以 JSON 附件导出会话
// @Summary      导出 JSON
// @Tags         会话
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "会话ID"
// @Success      200  {object}  service.ExportDocument
// @Failure      404  {object}  handler.ErrorResponse
// @Router       /api/v1/conversations/{id}/export/json [get]
func (h *Handler) ExportJSON(c *gin.Context) {
	id := c.Param("id")
	doc, err := h.conversationService.Export(c.Request.Context(), handler.UserID(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Error().Err(err).Str("conversation_id", id).Msg("failed to encode export")
		handler.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+service.ExportFilename(id, "json")+`"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// ExportMarkdown 以 Markdown 附件导出会话
// @Summary      导出 Markdown
// @Tags         会话
// @Produce      plain
// @Security     BearerAuth
// @Param        id   path      string  true  "会话ID"
// @Success      200  {string}  string
// @Failure      404  {object}  handler.ErrorResponse
// @Router       /api/v1/conversations/{id}/export/markdown [get]
func (h *Handler) ExportMarkdown(c *gin.Context) {
	id := c.Param("id")
	md, err := h.conversationService.ExportMarkdown(c.Request.Context(), handler.UserID(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+service.ExportFilename(id, "md")+`"`)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
}

// ExportHTML 以 HTML 附件导出会话
// @Summary      导出 HTML
// @Tags         会话
// @Produce      html
// @Security     BearerAuth
// @Param        id   path      string  true  "会话ID"
// @Success      200  {string}  string
// @Failure      404  {object}  handler.ErrorResponse
// @Router       /api/v1/conversations/{id}/export/html [get]
func (h *Handler) ExportHTML(c *gin.Context) {
	id := c.Param("id")
	page, err := h.conversationService.ExportHTML(c.Request.Context(), handler.UserID(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+service.ExportFilename(id, "html")+`"`)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// Import 从导出的 JSON 新建会话
// @Summary      导入会话
// @Tags         会话
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      service.ExportDocument  true  "导出的会话"
// @Success      201      {object}  map[string]interface{}
// @Failure      400      {object}  handler.ErrorResponse
// @Router       /api/v1/conversations/import [post]
func (h *Handler) Import(c *gin.Context) {
	var doc service.ExportDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		handler.BadRequest(c, err)
		return
	}

	conv, err := h.conversationService.Import(c.Request.Context(), handler.UserID(c), &doc)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Success(c, http.StatusCreated, "conversation imported", conv)
}
