package repository

import (
	"context"

	"AttendanceSync/internal/model"

	"gorm.io/gorm"
)

// RunRepository 聚合运行日志仓储
type RunRepository interface {
	Save(ctx context.Context, run *model.AggregationRun) error
	// ListRecent 按开始时间倒序；dateKey 为空时不过滤
	ListRecent(ctx context.Context, dateKey string, limit int) ([]*model.AggregationRun, error)
}

type runRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) Save(ctx context.Context, run *model.AggregationRun) error {
	return translate(r.db.WithContext(ctx).Create(run).Error)
}

func (r *runRepository) ListRecent(ctx context.Context, dateKey string, limit int) ([]*model.AggregationRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	db := r.db.WithContext(ctx).Model(&model.AggregationRun{})
	if dateKey != "" {
		db = db.Where("date_key = ?", dateKey)
	}
	var runs []*model.AggregationRun
	if err := db.Order("started_at DESC").Order("id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, translate(err)
	}
	return runs, nil
}
