package handler

import (
	"Inkwell/internal/modules/content/application/service"
	"Inkwell/internal/modules/content/domain/moderation"
	"Inkwell/pkg/back"

	"github.com/gin-gonic/gin"
)

type LikeHandler struct {
	svc service.LikeService
}

func NewLikeHandler(svc service.LikeService) *LikeHandler {
	return &LikeHandler{svc: svc}
}

// Toggle POST /likes/:kind/:id
func (h *LikeHandler) Toggle(c *gin.Context) {
	kind, ok := moderation.ParseKind(c.Param("kind"))
	if !ok {
		back.Result(c, nil, errUnknownKind)
		return
	}
	data, err := h.svc.ToggleLike(c.Request.Context(), c.GetString("uuid"), kind, c.Param("id"))
	back.Result(c, data, err)
}
