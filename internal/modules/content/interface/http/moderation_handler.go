package handler

import (
	"Inkwell/internal/modules/content/application/dto/request"
	"Inkwell/internal/modules/content/application/service"
	"Inkwell/internal/modules/content/domain/moderation"
	"Inkwell/pkg/back"
	"Inkwell/pkg/xerr"

	"github.com/gin-gonic/gin"
)

var errUnknownKind = xerr.New(xerr.BadRequest, "未知的内容类型")

type ModerationHandler struct {
	svc service.ModerationService
}

func NewModerationHandler(svc service.ModerationService) *ModerationHandler {
	return &ModerationHandler{svc: svc}
}

// actorAndKind 从 jwt 中间件写入的上下文取操作人，从路径取内容类型
func actorAndKind(c *gin.Context) (moderation.Actor, moderation.Kind, bool) {
	actor := moderation.Actor{ID: c.GetString("uuid"), Roles: c.GetStringSlice("roles")}
	kind, ok := moderation.ParseKind(c.Param("kind"))
	if !ok {
		back.Result(c, nil, errUnknownKind)
	}
	return actor, kind, ok
}

// Approve POST /moderation/:kind/:id/approve
func (h *ModerationHandler) Approve(c *gin.Context) {
	actor, kind, ok := actorAndKind(c)
	if !ok {
		return
	}
	data, err := h.svc.Approve(c.Request.Context(), actor, kind, c.Param("id"))
	back.Result(c, data, err)
}

// Reject POST /moderation/:kind/:id/reject
func (h *ModerationHandler) Reject(c *gin.Context) {
	actor, kind, ok := actorAndKind(c)
	if !ok {
		return
	}
	var req request.RejectRequest
	if !bindJSON(c, &req) {
		return
	}
	data, err := h.svc.Reject(c.Request.Context(), actor, kind, c.Param("id"), req.Reason)
	back.Result(c, data, err)
}

// Archive POST /moderation/:kind/:id/archive，作者或管理员
func (h *ModerationHandler) Archive(c *gin.Context) {
	actor, kind, ok := actorAndKind(c)
	if !ok {
		return
	}
	data, err := h.svc.Archive(c.Request.Context(), actor, kind, c.Param("id"))
	back.Result(c, data, err)
}

// ListPending GET /moderation/:kind/pending
func (h *ModerationHandler) ListPending(c *gin.Context) {
	actor, kind, ok := actorAndKind(c)
	if !ok {
		return
	}
	var req request.ListPendingRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.ListPending(c.Request.Context(), actor, kind, req)
	back.Result(c, data, err)
}
