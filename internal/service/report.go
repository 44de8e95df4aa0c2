package service

import (
	"context"
	"fmt"

	"AttendanceSync/internal/model"
	"AttendanceSync/internal/repository"
	"AttendanceSync/internal/utils/datekey"
)

// ReportService 最终考勤查询（供前端/报表使用）
type ReportService struct {
	canonicalRepo repository.CanonicalRepository
	runRepo       repository.RunRepository
}

func NewReportService(canonicalRepo repository.CanonicalRepository, runRepo repository.RunRepository) *ReportService {
	return &ReportService{canonicalRepo: canonicalRepo, runRepo: runRepo}
}

// DailyReport 某天的最终考勤及出勤/缺勤/请假统计
func (s *ReportService) DailyReport(ctx context.Context, dateKey string) (*model.DailyReport, error) {
	if !datekey.Valid(dateKey) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDateKey, dateKey)
	}
	records, err := s.canonicalRepo.ListByDateKey(ctx, dateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: 查询最终考勤失败: %v", ErrStoreUnavailable, err)
	}
	report := &model.DailyReport{DateKey: dateKey, Records: records}
	if report.Records == nil {
		report.Records = []*model.CanonicalRecord{}
	}
	for _, r := range records {
		report.Tally.Add(r.Present, r.HasPermission)
	}
	return report, nil
}

// RecentRuns 最近的聚合运行日志
func (s *ReportService) RecentRuns(ctx context.Context, dateKey string, limit int) ([]*model.AggregationRun, error) {
	if dateKey != "" && !datekey.Valid(dateKey) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDateKey, dateKey)
	}
	if s.runRepo == nil {
		return []*model.AggregationRun{}, nil
	}
	runs, err := s.runRepo.ListRecent(ctx, dateKey, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: 查询运行日志失败: %v", ErrStoreUnavailable, err)
	}
	if runs == nil {
		runs = []*model.AggregationRun{}
	}
	return runs, nil
}
