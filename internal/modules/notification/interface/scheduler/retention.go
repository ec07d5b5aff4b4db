package scheduler

import (
	"context"
	"sync"
	"time"

	"Inkwell/pkg/zlog"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Purger 删除早于 before 的已读通知
type Purger interface {
	PurgeRead(ctx context.Context, before time.Time) (int64, error)
}

// RetentionManager 定时清理已读通知
type RetentionManager struct {
	cron      *cron.Cron
	purger    Purger
	clock     clockwork.Clock
	retention time.Duration
	spec      string

	mu      sync.Mutex
	entryID cron.EntryID
	running bool
}

func NewRetentionManager(purger Purger, spec string, retentionDays int, clock clockwork.Clock) *RetentionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RetentionManager{
		// 使用标准5段Cron表达式（不含秒）
		cron:      cron.New(),
		purger:    purger,
		clock:     clock,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		spec:      spec,
	}
}

func (m *RetentionManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	id, err := m.cron.AddFunc(m.spec, func() { m.RunOnce(context.Background()) })
	if err != nil {
		return err
	}
	m.entryID = id
	m.cron.Start()
	m.running = true
	zlog.Info("notification retention scheduler started", zap.String("cron", m.spec), zap.Duration("retention", m.retention))
	return nil
}

// Stop 等待正在执行的清理结束
func (m *RetentionManager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cron.Remove(m.entryID)
	m.mu.Unlock()
	<-m.cron.Stop().Done()
}

// RunOnce 执行一次清理，返回删除数量
func (m *RetentionManager) RunOnce(ctx context.Context) int64 {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error("notification retention panic", zap.Any("recover", r))
		}
	}()
	before := m.clock.Now().Add(-m.retention)
	n, err := m.purger.PurgeRead(ctx, before)
	if err != nil {
		zlog.Error("purge read notifications failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		zlog.Info("purged read notifications", zap.Int64("count", n), zap.Time("before", before))
	}
	return n
}
