package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"AttendanceSync/internal/model"
	"AttendanceSync/internal/repository"
	"AttendanceSync/internal/utils/datekey"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

// AggregationService 聚合任务入口：校验日期键、合并进程内同一天的并发调用、记录运行日志
type AggregationService struct {
	engine       *AggregationEngine
	runRepo      repository.RunRepository // 可为 nil，则不记录运行日志
	calendar     *datekey.Calendar
	storeTimeout time.Duration
	group        singleflight.Group
	logger       *logrus.Logger
}

func NewAggregationService(engine *AggregationEngine, runRepo repository.RunRepository, calendar *datekey.Calendar, logger *logrus.Logger) *AggregationService {
	return &AggregationService{
		engine:       engine,
		runRepo:      runRepo,
		calendar:     calendar,
		storeTimeout: engine.storeTimeout,
		logger:       logger,
	}
}

// Today 当前日期键
func (s *AggregationService) Today() string {
	return s.calendar.Today()
}

// Aggregate 聚合 dateKey（空串表示当天）。
// 运行与调用方 ctx 的取消解绑：调用方断开后本次聚合仍会完成，避免最终考勤只写了一半。
// 同一进程内同一天的并发调用只在上一次运行开始扫描之前合并；扫描开始后到达的调用另起一次运行，
// 保证调用前追加的临时考勤一定被本次返回的结果覆盖。
func (s *AggregationService) Aggregate(ctx context.Context, dateKey string, trigger string) (*model.RunSummary, error) {
	if dateKey == "" {
		dateKey = s.calendar.Today()
	}
	if !datekey.Valid(dateKey) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDateKey, dateKey)
	}

	runCtx := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(dateKey, func() (interface{}, error) {
		summary, err := s.engine.aggregate(runCtx, dateKey, func() { s.group.Forget(dateKey) })
		summary.Trigger = trigger
		s.logRun(summary, err)
		s.recordRun(runCtx, summary, err)
		return summary, err
	})
	summary := copySummary(v.(*model.RunSummary))
	if shared {
		s.logger.WithFields(logrus.Fields{
			"date_key": dateKey,
			"trigger":  trigger,
			"run_id":   summary.RunID,
			"run_by":   summary.Trigger,
		}).Debug("同一天的聚合尚未开始扫描，复用其结果")
	}
	summary.Trigger = trigger
	return summary, err
}

// copySummary 每个调用方拿到独立副本
func copySummary(src *model.RunSummary) *model.RunSummary {
	dst := *src
	if src.FailedStudents != nil {
		dst.FailedStudents = append([]string(nil), src.FailedStudents...)
	}
	return &dst
}

func (s *AggregationService) logRun(summary *model.RunSummary, err error) {
	entry := s.logger.WithFields(logrus.Fields{
		"run_id":             summary.RunID,
		"date_key":           summary.DateKey,
		"trigger":            summary.Trigger,
		"entries_scanned":    summary.EntriesScanned,
		"students_resolved":  summary.StudentsResolved,
		"records_created":    summary.RecordsCreated,
		"records_updated":    summary.RecordsUpdated,
		"records_unchanged":  summary.RecordsUnchanged,
		"conflicts_resolved": summary.ConflictsResolved,
		"duration_ms":        summary.FinishedAt.Sub(summary.StartedAt).Milliseconds(),
	})
	switch {
	case err == nil:
		entry.Info("考勤聚合完成")
	case errors.Is(err, ErrPartialFailure):
		entry.WithError(err).WithField("failed_students", summary.FailedStudents).Warn("考勤聚合部分失败")
	default:
		entry.WithError(err).Error("考勤聚合失败")
	}
}

// recordRun 写运行日志，失败只记日志不影响聚合结果
func (s *AggregationService) recordRun(ctx context.Context, summary *model.RunSummary, runErr error) {
	if s.runRepo == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		s.logger.WithError(err).Warn("序列化运行汇总失败")
		return
	}
	run := &model.AggregationRun{
		RunID:      summary.RunID,
		DateKey:    summary.DateKey,
		Trigger:    summary.Trigger,
		Status:     runStatus(runErr),
		Summary:    datatypes.JSON(raw),
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.runRepo.Save(ctx, run); err != nil {
		s.logger.WithError(err).WithField("run_id", summary.RunID).Warn("保存运行日志失败")
	}
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return model.RunStatusSuccess
	case errors.Is(err, ErrPartialFailure):
		return model.RunStatusPartial
	default:
		return model.RunStatusFailed
	}
}
