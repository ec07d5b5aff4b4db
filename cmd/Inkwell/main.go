package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Inkwell/internal/config"
	"Inkwell/internal/initial"
	"Inkwell/pkg/zlog"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "config file path, overrides "+config.EnvConfigPath)
	flag.Parse()

	// 1. 加载配置
	var conf *config.Config
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			zlog.Fatal("加载配置文件失败", zap.String("path", *configPath), zap.Error(err))
		}
		conf = c
	} else {
		conf = config.GetConfig()
	}

	if err := zlog.Init(zlog.Options{
		Level:      conf.LogConfig.Level,
		LogPath:    conf.LogConfig.LogPath,
		MaxSizeMB:  conf.LogConfig.MaxSizeMB,
		MaxBackups: conf.LogConfig.MaxBackups,
		MaxAgeDays: conf.LogConfig.MaxAgeDays,
	}); err != nil {
		zlog.Fatal("初始化日志失败", zap.Error(err))
	}
	defer zlog.Sync()

	// 2. 组装并启动服务
	app, err := initial.NewApp(conf)
	if err != nil {
		zlog.Fatal("服务初始化失败", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()

	// 3. 优雅关闭
	var runErr error
	select {
	case <-ctx.Done():
		zlog.Info("正在关闭服务器...")
	case runErr = <-errCh:
		if runErr != nil {
			zlog.Error("服务器异常退出", zap.Error(runErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	app.Shutdown(shutdownCtx)
	cancel()
	zlog.Info("服务器已关闭")
	if runErr != nil {
		zlog.Sync()
		os.Exit(1)
	}
}
