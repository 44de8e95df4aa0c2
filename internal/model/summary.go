package model

import (
	"time"

	"gorm.io/datatypes"
)

// 触发来源
const (
	TriggerScheduler = "scheduler"
	TriggerHTTP      = "http"
	TriggerCLI       = "cli"
)

// 运行状态
const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
)

// Tally 出勤/缺勤/请假计数
type Tally struct {
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Permission int `json:"permission"` // 请假缺勤，也计入 Absent
}

// Add 计入一条考勤结果
func (t *Tally) Add(present, hasPermission bool) {
	if present {
		t.Present++
		return
	}
	t.Absent++
	if hasPermission {
		t.Permission++
	}
}

// RunSummary 单次聚合运行的汇总，由调用方决定是否记录
type RunSummary struct {
	RunID             string    `json:"runId"`
	DateKey           string    `json:"dateKey"`
	Trigger           string    `json:"trigger,omitempty"`
	EntriesScanned    int       `json:"entriesScanned"`
	EntriesSkipped    int       `json:"entriesSkipped"`
	StudentsResolved  int       `json:"studentsResolved"`
	RecordsCreated    int       `json:"recordsCreated"`
	RecordsUpdated    int       `json:"recordsUpdated"`
	RecordsUnchanged  int       `json:"recordsUnchanged"`
	ConflictsResolved int       `json:"conflictsResolved"`
	FailedStudents    []string  `json:"failedStudents,omitempty"`
	Tally             Tally     `json:"tally"`
	StartedAt         time.Time `json:"startedAt"`
	FinishedAt        time.Time `json:"finishedAt"`
}

// AggregationRun 聚合运行日志（aggregation_runs）
type AggregationRun struct {
	ID         uint64         `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	RunID      string         `gorm:"column:run_id;type:varchar(64);uniqueIndex;not null" json:"runId"`
	DateKey    string         `gorm:"column:date_key;type:varchar(10);index;not null" json:"dateKey"`
	Trigger    string         `gorm:"column:triggered_by;type:varchar(16);not null" json:"trigger"`
	Status     string         `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Error      string         `gorm:"column:error;type:text" json:"error,omitempty"`
	Summary    datatypes.JSON `gorm:"column:summary;type:jsonb" json:"summary"`
	StartedAt  time.Time      `gorm:"column:started_at;type:timestamp;not null" json:"startedAt"`
	FinishedAt time.Time      `gorm:"column:finished_at;type:timestamp;not null" json:"finishedAt"`
}

func (AggregationRun) TableName() string { return "aggregation_runs" }

// DailyReport 某天的最终考勤与出勤统计
type DailyReport struct {
	DateKey string             `json:"dateKey"`
	Records []*CanonicalRecord `json:"records"`
	Tally   Tally              `json:"tally"`
}
