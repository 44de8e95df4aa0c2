package repository

import (
	"context"
	"fmt"
	"time"

	"AttendanceSync/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubmissionRepository 临时考勤仓储（temp_attendance），按日期分区的只追加日志
type SubmissionRepository interface {
	// ListByDateKey 全量拉取某天的临时考勤，不保证顺序
	ListByDateKey(ctx context.Context, dateKey string) ([]*model.ProvisionalEntry, error)
	// Append 追加一条提交，submission_id / submitted_at 为空时自动补齐
	Append(ctx context.Context, entry *model.ProvisionalEntry) error
}

type submissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) ListByDateKey(ctx context.Context, dateKey string) ([]*model.ProvisionalEntry, error) {
	var entries []*model.ProvisionalEntry
	if err := r.db.WithContext(ctx).
		Where("date_key = ?", dateKey).
		Find(&entries).Error; err != nil {
		return nil, translate(err)
	}
	return entries, nil
}

func (r *submissionRepository) Append(ctx context.Context, entry *model.ProvisionalEntry) error {
	if err := prepareEntry(entry); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("追加临时考勤失败 student_id=%s: %w", entry.StudentID, translate(err))
	}
	return nil
}

func prepareEntry(entry *model.ProvisionalEntry) error {
	if entry == nil {
		return fmt.Errorf("provisional entry is nil")
	}
	if entry.StudentID == "" || entry.DateKey == "" {
		return fmt.Errorf("student_id 与 date_key 不能为空")
	}
	if entry.SubmissionID == "" {
		entry.SubmissionID = uuid.NewString()
	}
	if entry.SubmittedAt.IsZero() {
		entry.SubmittedAt = time.Now()
	}
	return nil
}
