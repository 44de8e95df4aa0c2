package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"AttendanceSync/internal/interfaces"
	"AttendanceSync/internal/model"
	"AttendanceSync/internal/utils/datekey"

	"github.com/sirupsen/logrus"
)

// defaultInterval 默认聚合周期
const defaultInterval = time.Hour

// Scheduler 按固定周期触发当天的考勤聚合。
// 状态 Idle -> Running -> Idle；运行中到达的 tick 直接丢弃（不排队），失败只记日志。
type Scheduler struct {
	runner     interfaces.AggregationRunner
	calendar   *datekey.Calendar
	interval   time.Duration
	runOnStart bool
	logger     *logrus.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
}

func NewScheduler(runner interfaces.AggregationRunner, calendar *datekey.Calendar, interval time.Duration, runOnStart bool, logger *logrus.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		runner:     runner,
		calendar:   calendar,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger,
	}
}

// Start 启动调度循环；重复调用无效果
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.WithField("interval", s.interval.String()).Info("考勤聚合定时任务已启动")
}

// Stop 停止调度并等待正在进行的聚合结束；之后可再次 Start
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()
	s.logger.Info("考勤聚合定时任务已停止")
}

// Running 是否有聚合正在进行
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Runs 已发起的聚合次数
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

// Skipped 因上一次仍在运行而丢弃的 tick 数
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.runOnStart {
		s.tick(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick 空闲时在独立 goroutine 中发起一次聚合；wg 计数保证 Stop 等到它结束
func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Debug("上一次考勤聚合仍在进行，跳过本次 tick")
		return
	}
	s.runs.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.runOnce(context.WithoutCancel(ctx))
	}()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.WithField("panic", p).Error("定时考勤聚合 panic")
		}
	}()
	dateKey := s.calendar.Today()
	if _, err := s.runner.Aggregate(ctx, dateKey, model.TriggerScheduler); err != nil {
		s.logger.WithError(err).WithField("date_key", dateKey).Warn("定时考勤聚合失败，等待下一次 tick")
	}
}
