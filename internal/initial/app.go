package initial

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpApi "Inkwell/api/http"
	"Inkwell/internal/config"
	"Inkwell/internal/metrics"
	contentService "Inkwell/internal/modules/content/application/service"
	contentPersistence "Inkwell/internal/modules/content/infrastructure/persistence"
	contentHandler "Inkwell/internal/modules/content/interface/http"
	notificationService "Inkwell/internal/modules/notification/application/service"
	"Inkwell/internal/modules/notification/infrastructure/cache"
	"Inkwell/internal/modules/notification/infrastructure/mq"
	notificationPersistence "Inkwell/internal/modules/notification/infrastructure/persistence"
	notificationHandler "Inkwell/internal/modules/notification/interface/http"
	"Inkwell/internal/modules/notification/interface/scheduler"
	realtimeService "Inkwell/internal/modules/realtime/application/service"
	realtimeHandler "Inkwell/internal/modules/realtime/interface/http"
	userService "Inkwell/internal/modules/user/application/service"
	userPersistence "Inkwell/internal/modules/user/infrastructure/persistence"
	userHandler "Inkwell/internal/modules/user/interface/http"
	"Inkwell/pkg/util/myjwt"
	"Inkwell/pkg/ws"
	"Inkwell/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 进程内全部长生命周期组件
type App struct {
	conf      *config.Config
	db        *gorm.DB
	rdb       *goredis.Client
	publisher mq.Publisher

	hub       *ws.Hub
	heartbeat *ws.Heartbeat
	retention *scheduler.RetentionManager
	server    *http.Server
}

// NewApp 按配置连接外部依赖并组装各模块
func NewApp(conf *config.Config) (*App, error) {
	if conf.MainConfig.GinMode != "" {
		gin.SetMode(conf.MainConfig.GinMode)
	}
	clock := clockwork.NewRealClock()
	app := &App{conf: conf}

	verifier, err := myjwt.NewVerifier(conf.JwtConfig, clock)
	if err != nil {
		return nil, err
	}
	if app.db, err = NewGormDB(conf); err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	if app.rdb, err = NewRedisClient(conf); err != nil {
		// 未读数缓存只是加速，连接失败时降级为直接查库
		zlog.Warn("redis unavailable, unread cache disabled", zap.Error(err))
		app.rdb = nil
	}
	if app.publisher, err = NewNotificationPublisher(conf); err != nil {
		zlog.Warn("kafka unavailable, notification mirror disabled", zap.Error(err))
		app.publisher = nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	app.hub = ws.NewHub(
		ws.WithClock(clock),
		ws.WithMaxConnectionsPerUser(conf.MaxConnectionsPerUser),
		ws.WithObserver(m),
	)
	dispatcher := ws.NewDispatcher(app.hub, m)
	app.heartbeat = ws.NewHeartbeat(app.hub, conf.HeartbeatInterval(), conf.LivenessTimeout(), m)

	userRepo := userPersistence.NewUserInfoRepository(app.db)
	notificationRepo := notificationPersistence.NewNotificationRepository(app.db)
	contentRepo := contentPersistence.NewContentRepository(app.db)

	opts := []notificationService.Option{
		notificationService.WithClock(clock),
		notificationService.WithRecorder(m),
		notificationService.WithPageSizeMax(conf.PageSizeMax),
	}
	if app.rdb != nil {
		opts = append(opts, notificationService.WithUnreadCache(cache.NewRedisUnreadCache(app.rdb, conf.UnreadTTL())))
	}
	if app.publisher != nil {
		opts = append(opts, notificationService.WithPublisher(app.publisher, conf.NotificationTopic))
	}
	notificationSvc := notificationService.NewNotificationService(notificationRepo, userRepo, dispatcher, opts...)
	contentSvc := contentService.NewContentService(contentRepo, userRepo, notificationSvc, clock)
	moderationSvc := contentService.NewModerationService(contentRepo, userRepo, notificationSvc, dispatcher, m, clock)
	likeSvc := contentService.NewLikeService(contentRepo, contentPersistence.NewLikeRepository(app.db), userRepo, notificationSvc, dispatcher, clock)
	userSvc := userService.NewUserInfoService(userRepo, app.hub)
	authenticator := realtimeService.NewConnectionAuthenticator(verifier, userRepo)

	app.retention = scheduler.NewRetentionManager(notificationSvc, conf.RetentionCron, conf.RetentionDays, clock)

	router := httpApi.NewRouter(conf, verifier, httpApi.Handlers{
		User:         userHandler.NewUserInfoHandler(userSvc),
		Content:      contentHandler.NewContentHandler(contentSvc),
		Moderation:   contentHandler.NewModerationHandler(moderationSvc),
		Like:         contentHandler.NewLikeHandler(likeSvc),
		Notification: notificationHandler.NewNotificationHandler(notificationSvc),
		Realtime:     realtimeHandler.NewRealtimeHandler(authenticator, app.hub, notificationSvc, conf.RealtimeConfig),
	}, registry)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return app, nil
}

// Run 启动后台任务并阻塞在 HTTP 服务上，Shutdown 后返回 nil
func (a *App) Run(ctx context.Context) error {
	a.heartbeat.Start(ctx)
	if err := a.retention.Start(); err != nil {
		return fmt.Errorf("start retention job: %w", err)
	}
	zlog.Info("服务器正在启动", zap.String("addr", a.server.Addr))
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 先停后台任务并关闭全部实时连接，再关 HTTP 服务与外部依赖。
// 流式连接的请求只有在连接关闭后才返回，必须先于 server.Shutdown 关掉
func (a *App) Shutdown(ctx context.Context) {
	a.heartbeat.Stop()
	a.retention.Stop()
	closed := a.hub.CloseAll()
	zlog.Info("realtime connections closed", zap.Int("count", closed))
	if err := a.server.Shutdown(ctx); err != nil {
		zlog.Warn("http shutdown", zap.Error(err))
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			zlog.Warn("close kafka publisher", zap.Error(err))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			zlog.Warn("close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
