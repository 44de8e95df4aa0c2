package model

import (
	"time"
)

// ProvisionalEntry 老师提交的临时考勤（temp_attendance），写入后不可修改，更正以新记录追加
type ProvisionalEntry struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	SubmissionID  string    `gorm:"column:submission_id;type:varchar(64);uniqueIndex;not null" json:"submissionId"`       // 每次提交唯一
	StudentID     string    `gorm:"column:student_id;type:varchar(64);not null;index:idx_temp_date_student,priority:2" json:"studentId"`
	DateKey       string    `gorm:"column:date_key;type:varchar(10);not null;index:idx_temp_date_student,priority:1" json:"dateKey"` // 聚合分区键 YYYY-MM-DD
	Present       bool      `gorm:"column:present;type:boolean;not null;default:false" json:"present"`
	HasPermission bool      `gorm:"column:has_permission;type:boolean;not null;default:false" json:"hasPermission"` // 仅缺勤时有意义：是否请假
	Reason        string    `gorm:"column:reason;type:text" json:"reason,omitempty"`
	MarkedBy      string    `gorm:"column:marked_by;type:varchar(64);not null" json:"markedBy"`
	SubmittedAt   time.Time `gorm:"column:submitted_at;type:timestamp;not null" json:"submittedAt"`
}

func (ProvisionalEntry) TableName() string { return "temp_attendance" }

// CanonicalRecord 每个学生每天唯一的最终考勤（attendance），仅由聚合任务写入
type CanonicalRecord struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	StudentID     string    `gorm:"column:student_id;type:varchar(64);not null;uniqueIndex:uq_attendance_student_date,priority:2" json:"studentId"`
	DateKey       string    `gorm:"column:date_key;type:varchar(10);not null;uniqueIndex:uq_attendance_student_date,priority:1" json:"dateKey"`
	Present       bool      `gorm:"column:present;type:boolean;not null;default:false" json:"present"`
	HasPermission bool      `gorm:"column:has_permission;type:boolean;not null;default:false" json:"hasPermission"`
	Reason        string    `gorm:"column:reason;type:text" json:"reason,omitempty"`
	ResolvedFrom  string    `gorm:"column:resolved_from;type:varchar(64);not null" json:"resolvedFrom"` // 胜出的 submission_id
	MarkedBy      string    `gorm:"column:marked_by;type:varchar(64);not null" json:"markedBy"`
	SourceCount   int       `gorm:"column:source_count;type:int;not null;default:0" json:"sourceCount"` // 参与裁决的临时记录条数
	Version       int64     `gorm:"column:version;type:bigint;not null;default:1" json:"version"`
	AggregatedAt  time.Time `gorm:"column:aggregated_at;type:timestamp;not null" json:"aggregatedAt"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (CanonicalRecord) TableName() string { return "attendance" }

// Resolution 单个学生当天的裁决结果
type Resolution struct {
	StudentID     string
	Present       bool
	HasPermission bool
	Reason        string
	ResolvedFrom  string
	MarkedBy      string
	SourceCount   int
	Conflicting   bool // 提交之间在 present/has_permission 上存在分歧
}

// Matches 判断已落库记录与新裁决的结果字段是否一致（不含 SourceCount）
func (r *CanonicalRecord) Matches(res *Resolution) bool {
	return r.Present == res.Present &&
		r.HasPermission == res.HasPermission &&
		r.Reason == res.Reason &&
		r.ResolvedFrom == res.ResolvedFrom &&
		r.MarkedBy == res.MarkedBy
}

// NewCanonicalRecord 首次聚合时生成 version=1 的记录
func NewCanonicalRecord(dateKey string, res *Resolution, aggregatedAt time.Time) *CanonicalRecord {
	return &CanonicalRecord{
		StudentID:     res.StudentID,
		DateKey:       dateKey,
		Present:       res.Present,
		HasPermission: res.HasPermission,
		Reason:        res.Reason,
		ResolvedFrom:  res.ResolvedFrom,
		MarkedBy:      res.MarkedBy,
		SourceCount:   res.SourceCount,
		Version:       1,
		AggregatedAt:  aggregatedAt,
	}
}

// Refresh 裁决结果不变、只补齐 source_count，version 不变
func (r *CanonicalRecord) Refresh(sourceCount int, aggregatedAt time.Time) *CanonicalRecord {
	next := *r
	next.SourceCount = sourceCount
	next.AggregatedAt = aggregatedAt
	return &next
}

// Next 基于当前记录生成下一版本（version+1）
func (r *CanonicalRecord) Next(res *Resolution, aggregatedAt time.Time) *CanonicalRecord {
	next := *r
	next.Present = res.Present
	next.HasPermission = res.HasPermission
	next.Reason = res.Reason
	next.ResolvedFrom = res.ResolvedFrom
	next.MarkedBy = res.MarkedBy
	next.SourceCount = res.SourceCount
	next.Version = r.Version + 1
	next.AggregatedAt = aggregatedAt
	return &next
}
