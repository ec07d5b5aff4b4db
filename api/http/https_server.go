package http

import (
	"Inkwell/internal/config"
	jwtMiddleware "Inkwell/internal/middleware/jwt"
	contentHandler "Inkwell/internal/modules/content/interface/http"
	notificationHandler "Inkwell/internal/modules/notification/interface/http"
	realtimeHandler "Inkwell/internal/modules/realtime/interface/http"
	userEntity "Inkwell/internal/modules/user/domain/entity"
	userHandler "Inkwell/internal/modules/user/interface/http"
	"Inkwell/pkg/ssl"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由需要的全部 handler
type Handlers struct {
	User         *userHandler.UserInfoHandler
	Content      *contentHandler.ContentHandler
	Moderation   *contentHandler.ModerationHandler
	Like         *contentHandler.LikeHandler
	Notification *notificationHandler.NotificationHandler
	Realtime     *realtimeHandler.RealtimeHandler
}

// NewRouter 组装 gin 引擎。实时连接自行认证，不走 jwt 中间件
func NewRouter(conf *config.Config, parser jwtMiddleware.TokenParser, h Handlers, gatherer prometheus.Gatherer) *gin.Engine {
	GE := gin.New()
	GE.Use(gin.Recovery())
	if conf.MainConfig.GinMode != gin.ReleaseMode {
		GE.Use(gin.Logger())
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	if origins := conf.AllowedOrigins; len(origins) > 0 && origins[0] != "*" {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Sec-WebSocket-Protocol"}
	GE.Use(cors.New(corsConfig))
	GE.Use(ssl.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port, conf.MainConfig.ForceTLS))

	if gatherer != nil {
		GE.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	GE.GET("/notifications/ws", h.Realtime.Connect)
	GE.GET("/notifications/stream", h.Realtime.Stream)

	authed := GE.Group("/")
	authed.Use(jwtMiddleware.Auth(parser))
	authed.GET("/auth/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"uuid":     c.GetString("uuid"),
			"username": c.GetString("username"),
			"roles":    c.GetStringSlice("roles"),
		})
	})
	authed.GET("/user/me", h.User.Me)

	authed.GET("/notifications", h.Notification.List)
	authed.GET("/notifications/unread-count", h.Notification.UnreadCount)
	authed.PATCH("/notifications/read-all", h.Notification.MarkAllAsRead)
	authed.PATCH("/notifications/:id/read", h.Notification.MarkAsRead)
	authed.GET("/notifications/ws-status", jwtMiddleware.RequireRole(userEntity.RoleAdmin), h.Realtime.Status)

	authed.POST("/articles", h.Content.SubmitArticle)
	authed.PUT("/articles/:id", h.Content.EditArticle)
	authed.POST("/projects", h.Content.SubmitProject)
	authed.PUT("/projects/:id", h.Content.EditProject)
	authed.POST("/comments", h.Content.SubmitComment)
	authed.PUT("/comments/:id", h.Content.EditComment)
	authed.POST("/likes/:kind/:id", h.Like.Toggle)

	// 归档允许作者操作，角色在服务内校验
	authed.POST("/moderation/:kind/:id/archive", h.Moderation.Archive)
	moderators := authed.Group("/moderation")
	moderators.Use(jwtMiddleware.RequireRole(userEntity.RoleModerator, userEntity.RoleAdmin))
	moderators.GET("/:kind/pending", h.Moderation.ListPending)
	moderators.POST("/:kind/:id/approve", h.Moderation.Approve)
	moderators.POST("/:kind/:id/reject", h.Moderation.Reject)

	return GE
}
