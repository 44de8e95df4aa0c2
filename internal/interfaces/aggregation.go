package interfaces

import (
	"context"

	"AttendanceSync/internal/model"
)

// AggregationRunner 考勤聚合入口（定时任务、HTTP 触发、命令行共用）
type AggregationRunner interface {
	// Aggregate dateKey 为空时聚合当天；trigger 标记触发来源
	Aggregate(ctx context.Context, dateKey string, trigger string) (*model.RunSummary, error)
}

// AttendanceReporter 最终考勤与运行日志的只读查询
type AttendanceReporter interface {
	DailyReport(ctx context.Context, dateKey string) (*model.DailyReport, error)
	RecentRuns(ctx context.Context, dateKey string, limit int) ([]*model.AggregationRun, error)
}
