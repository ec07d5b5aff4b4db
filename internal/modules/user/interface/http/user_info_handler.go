package handler

import (
	"Inkwell/internal/modules/user/application/service"
	"Inkwell/pkg/back"

	"github.com/gin-gonic/gin"
)

type UserInfoHandler struct {
	svc service.UserInfoService
}

func NewUserInfoHandler(svc service.UserInfoService) *UserInfoHandler {
	return &UserInfoHandler{svc: svc}
}

// Me 当前登录用户资料及在线状态
func (h *UserInfoHandler) Me(c *gin.Context) {
	data, err := h.svc.GetProfile(c.GetString("uuid"))
	back.Result(c, data, err)
}
