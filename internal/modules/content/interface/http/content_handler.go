package handler

import (
	"Inkwell/internal/modules/content/application/dto/request"
	"Inkwell/internal/modules/content/application/service"
	"Inkwell/pkg/back"
	"Inkwell/pkg/xerr"
	"Inkwell/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ContentHandler struct {
	svc service.ContentService
}

func NewContentHandler(svc service.ContentService) *ContentHandler {
	return &ContentHandler{svc: svc}
}

// bindJSON 绑定失败时直接写出参数错误
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		zlog.Warn("bind request failed", zap.String("path", c.FullPath()), zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return false
	}
	return true
}

// SubmitArticle POST /articles
func (h *ContentHandler) SubmitArticle(c *gin.Context) {
	var req request.SubmitArticleRequest
	if !bindJSON(c, &req) {
		return
	}
	data, err := h.svc.SubmitArticle(c.Request.Context(), c.GetString("uuid"), req)
	back.Result(c, data, err)
}

// EditArticle PUT /articles/:id
func (h *ContentHandler) EditArticle(c *gin.Context) {
	var req request.SubmitArticleRequest
	if !bindJSON(c, &req) {
		return
	}
	data, err := h.svc.EditArticle(c.Request.Context(), c.GetString("uuid"), c.Param("id"), req)
	back.Result(c, data, err)
}

// SubmitProject POST /projects
func (h *ContentHandler) SubmitProject(c *gin.Context) {
	var req request.SubmitProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	data, err := h.svc.SubmitProject(c.Request.Context(), c.GetString("uuid"), req)
	back.Result(c, data, err)
}

// EditProject PUT /projects/:id
func (h *ContentHandler) EditProject(c *gin.Context) {
	var req request.SubmitProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	data, err := h.svc.EditProject(c.Request.Context(), c.GetString("uuid"), c.Param("id"), req)
	back.Result(c, data, err)
}

// SubmitComment POST /comments
func (h *ContentHandler) SubmitComment(c *gin.Context) {
	var req request.SubmitCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	data, err := h.svc.SubmitComment(c.Request.Context(), c.GetString("uuid"), req)
	back.Result(c, data, err)
}

// EditComment PUT /comments/:id
func (h *ContentHandler) EditComment(c *gin.Context) {
	var req request.EditCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	data, err := h.svc.EditComment(c.Request.Context(), c.GetString("uuid"), c.Param("id"), req)
	back.Result(c, data, err)
}
