package handler

import (
	"Inkwell/internal/modules/notification/application/dto/request"
	"Inkwell/internal/modules/notification/application/service"
	"Inkwell/pkg/back"
	"Inkwell/pkg/xerr"
	"Inkwell/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	svc service.NotificationService
}

func NewNotificationHandler(svc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// List GET /notifications
func (h *NotificationHandler) List(c *gin.Context) {
	var req request.ListNotificationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		zlog.Warn("bind list notification query failed", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.List(c.Request.Context(), c.GetString("uuid"), req)
	back.Result(c, data, err)
}

// UnreadCount GET /notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	data, err := h.svc.UnreadCount(c.Request.Context(), c.GetString("uuid"))
	back.Result(c, data, err)
}

// MarkAsRead PATCH /notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	data, err := h.svc.MarkAsRead(c.Request.Context(), c.GetString("uuid"), c.Param("id"))
	back.Result(c, data, err)
}

// MarkAllAsRead PATCH /notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	data, err := h.svc.MarkAllAsRead(c.Request.Context(), c.GetString("uuid"))
	back.Result(c, data, err)
}
