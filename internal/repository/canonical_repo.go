package repository

import (
	"context"

	"AttendanceSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CanonicalRepository 最终考勤仓储（attendance），只允许原子条件写入，不删除
type CanonicalRepository interface {
	// Get 按 (student_id, date_key) 查询，不存在返回 ErrRecordNotFound
	Get(ctx context.Context, studentID, dateKey string) (*model.CanonicalRecord, error)
	// Insert 不存在时创建；已存在返回 ErrVersionConflict
	Insert(ctx context.Context, rec *model.CanonicalRecord) error
	// CompareAndSwap 仅当当前 version == expectedVersion 且已存 source_count 不大于 rec.SourceCount 时覆盖；
	// 否则返回 ErrVersionConflict。临时考勤只追加，source_count 较小的写入来自更早的扫描
	CompareAndSwap(ctx context.Context, rec *model.CanonicalRecord, expectedVersion int64) error
	// ListByDateKey 查询某天所有最终考勤，按 student_id 排序
	ListByDateKey(ctx context.Context, dateKey string) ([]*model.CanonicalRecord, error)
}

type canonicalRepository struct {
	db *gorm.DB
}

func NewCanonicalRepository(db *gorm.DB) CanonicalRepository {
	return &canonicalRepository{db: db}
}

func (r *canonicalRepository) Get(ctx context.Context, studentID, dateKey string) (*model.CanonicalRecord, error) {
	var rec model.CanonicalRecord
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND date_key = ?", studentID, dateKey).
		First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

// Insert 依赖 uq_attendance_student_date 唯一索引，冲突时 DO NOTHING，RowsAffected 为 0 即视为被抢先
func (r *canonicalRepository) Insert(ctx context.Context, rec *model.CanonicalRecord) error {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "date_key"}},
		DoNothing: true,
	}).Create(rec)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// CompareAndSwap 单条 UPDATE ... WHERE version = ? AND source_count <= ?，避免先读后写的丢失更新
func (r *canonicalRepository) CompareAndSwap(ctx context.Context, rec *model.CanonicalRecord, expectedVersion int64) error {
	res := r.db.WithContext(ctx).Model(&model.CanonicalRecord{}).
		Where("student_id = ? AND date_key = ? AND version = ? AND source_count <= ?",
			rec.StudentID, rec.DateKey, expectedVersion, rec.SourceCount).
		Updates(map[string]interface{}{
			"present":        rec.Present,
			"has_permission": rec.HasPermission,
			"reason":         rec.Reason,
			"resolved_from":  rec.ResolvedFrom,
			"marked_by":      rec.MarkedBy,
			"source_count":   rec.SourceCount,
			"version":        rec.Version,
			"aggregated_at":  rec.AggregatedAt,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *canonicalRepository) ListByDateKey(ctx context.Context, dateKey string) ([]*model.CanonicalRecord, error) {
	var list []*model.CanonicalRecord
	if err := r.db.WithContext(ctx).
		Where("date_key = ?", dateKey).
		Order("student_id ASC").
		Find(&list).Error; err != nil {
		return nil, translate(err)
	}
	return list, nil
}
