package ws

import (
	"context"
	"sync"
	"time"

	"Inkwell/pkg/zlog"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// SweepResult 单轮心跳的统计
type SweepResult struct {
	Probed int
	Pruned int
}

// Heartbeat 周期性探测全部连接，清理写失败或超时未响应的连接
type Heartbeat struct {
	hub      *Hub
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration
	observer Observer

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewHeartbeat timeout 为 0 时只按写失败判定
func NewHeartbeat(hub *Hub, interval, timeout time.Duration, observer Observer) *Heartbeat {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Heartbeat{
		hub:      hub,
		clock:    hub.Clock(),
		interval: interval,
		timeout:  timeout,
		observer: observer,
	}
}

// Start 启动后台循环，重复调用无效
func (hb *Heartbeat) Start(ctx context.Context) {
	hb.mu.Lock()
	defer hb.mu.Unlock()
	if hb.running || hb.interval <= 0 {
		return
	}
	hb.running = true
	hb.stopCh = make(chan struct{})
	ticker := hb.clock.NewTicker(hb.interval)
	stop := hb.stopCh

	hb.wg.Add(1)
	go func() {
		defer hb.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.Chan():
				hb.Sweep()
			}
		}
	}()
	zlog.Info("heartbeat started", zap.Duration("interval", hb.interval), zap.Duration("timeout", hb.timeout))
}

// Stop 停止循环并等待其退出
func (hb *Heartbeat) Stop() {
	hb.mu.Lock()
	if !hb.running {
		hb.mu.Unlock()
		return
	}
	hb.running = false
	close(hb.stopCh)
	hb.mu.Unlock()
	hb.wg.Wait()
}

// Sweep 执行一轮探测
func (hb *Heartbeat) Sweep() SweepResult {
	now := hb.clock.Now()
	conns := hb.hub.Snapshot()
	res := SweepResult{Probed: len(conns)}
	if len(conns) == 0 {
		hb.observer.HeartbeatSwept(0, 0)
		return res
	}

	msg, err := NewEnvelope(TypeHeartbeat, nil, now).Encode(now)
	if err != nil {
		zlog.Error("encode heartbeat failed", zap.Error(err))
		return res
	}

	for _, c := range conns {
		if hb.timeout > 0 && now.Sub(c.LastLivenessAt()) > hb.timeout {
			if hb.hub.Unregister(c.ID) {
				res.Pruned++
				zlog.Info("prune stale connection", zap.String("connId", c.ID), zap.String("userId", c.UserID))
			}
			continue
		}
		if !safeSend(c.handle, msg) {
			if hb.hub.Unregister(c.ID) {
				res.Pruned++
				zlog.Info("prune dead connection", zap.String("connId", c.ID), zap.String("userId", c.UserID))
			}
		}
	}
	hb.observer.HeartbeatSwept(res.Probed, res.Pruned)
	return res
}
