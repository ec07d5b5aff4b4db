package zlog

import (
	"os"
	"sync"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 日志配置
type Options struct {
	Level      string
	LogPath    string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

func init() {
	// 未调用 Init 之前也要有可用的输出
	l, err := build(Options{Level: "info"})
	if err == nil {
		logger = l
	}
}

// Init 按配置重建全局 logger，LogPath 为空时只输出到 stdout
func Init(opts Options) error {
	l, err := build(opts)
	if err != nil {
		return err
	}
	mu.Lock()
	old := logger
	logger = l
	mu.Unlock()
	_ = old.Sync()
	return nil
}

func build(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if opts.LogPath != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.LogPath,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   true,
		}))
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.NewMultiWriteSyncer(sinks...), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

// L 返回当前 logger，供需要 With 的调用方使用
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

func Fatal(msg string, fields ...zap.Field) { L().Fatal(msg, fields...) }

// Sync 刷新缓冲，退出前调用
func Sync() {
	_ = L().Sync()
}
