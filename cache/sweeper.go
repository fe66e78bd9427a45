package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper 周期性调用 ResponseCache.Cleanup 的后台任务。
// 显式 Start/Stop，带单一完成信号，不做递归自触发。
type Sweeper struct {
	cache    *ResponseCache
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// NewSweeper 创建清扫任务。interval 非正时使用 10 分钟。
func NewSweeper(cache *ResponseCache, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		cache:    cache,
		interval: interval,
		logger:   logger.With(zap.String("component", "cache_sweeper")),
	}
}

// Start 启动后台清扫。重复调用无效果。
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(s.stop, s.done)
	s.logger.Info("cache sweeper started", zap.Duration("interval", s.interval))
}

// Stop 停止清扫并等待当前轮次结束。未启动时为空操作。
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	s.logger.Info("cache sweeper stopped")
}

func (s *Sweeper) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			removed := s.cache.Cleanup()
			if removed > 0 {
				s.logger.Debug("sweep completed", zap.Int("removed", removed))
			}
		}
	}
}
