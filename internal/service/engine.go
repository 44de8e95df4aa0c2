package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"AttendanceSync/internal/model"
	"AttendanceSync/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// defaultStoreTimeout 单次存储调用超时
const defaultStoreTimeout = 10 * time.Second

// upsertOutcome 单个学生的写入结果
type upsertOutcome int

const (
	outcomeCreated upsertOutcome = iota
	outcomeUpdated
	outcomeUnchanged
)

// AggregationEngine 考勤聚合引擎：把某天的临时考勤（只追加日志）归并为每个学生一条最终考勤。
// 同一 dateKey 重复执行结果不变；多个调用方并发执行时依赖存储层的原子条件写入收敛。
type AggregationEngine struct {
	submissions  repository.SubmissionRepository
	canonical    repository.CanonicalRepository
	policy       Policy
	storeTimeout time.Duration
	now          func() time.Time
	logger       *logrus.Logger
}

func NewAggregationEngine(
	submissions repository.SubmissionRepository,
	canonical repository.CanonicalRepository,
	policy Policy,
	storeTimeout time.Duration,
	logger *logrus.Logger,
) *AggregationEngine {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &AggregationEngine{
		submissions:  submissions,
		canonical:    canonical,
		policy:       policy,
		storeTimeout: storeTimeout,
		now:          time.Now,
		logger:       logger,
	}
}

// Aggregate 聚合 dateKey 当天的考勤。返回的 summary 始终非 nil（出错时为已完成部分的计数）。
// 存储不可用返回 ErrStoreUnavailable；部分学生写入失败返回 *PartialFailureError。
func (e *AggregationEngine) Aggregate(ctx context.Context, dateKey string) (*model.RunSummary, error) {
	return e.aggregate(ctx, dateKey, nil)
}

// aggregate beforeScan 在拉取临时考勤之前调用
func (e *AggregationEngine) aggregate(ctx context.Context, dateKey string, beforeScan func()) (*model.RunSummary, error) {
	summary := &model.RunSummary{
		RunID:     uuid.NewString(),
		DateKey:   dateKey,
		StartedAt: e.now(),
	}
	defer func() { summary.FinishedAt = e.now() }()

	// 1. 拉取当天全部临时考勤
	if beforeScan != nil {
		beforeScan()
	}
	entries, err := e.listEntries(ctx, dateKey)
	if err != nil {
		return summary, fmt.Errorf("%w: 拉取临时考勤失败 date_key=%s: %v", ErrStoreUnavailable, dateKey, err)
	}
	summary.EntriesScanned = len(entries)

	// 2. 按学生分组
	groups := make(map[string][]*model.ProvisionalEntry)
	for _, en := range entries {
		if en.StudentID == "" || en.DateKey != dateKey {
			summary.EntriesSkipped++
			continue
		}
		groups[en.StudentID] = append(groups[en.StudentID], en)
	}
	studentIDs := make([]string, 0, len(groups))
	for id := range groups {
		studentIDs = append(studentIDs, id)
	}
	sort.Strings(studentIDs)

	// 3. 逐个学生裁决并写入；单个学生失败不阻塞其余学生
	aggregatedAt := e.now()
	var partial *PartialFailureError
	for _, studentID := range studentIDs {
		res := e.policy.Resolve(groups[studentID])
		outcome, conflictResolved, err := e.upsert(ctx, dateKey, res, aggregatedAt)
		if err != nil {
			if repository.IsUnavailable(err) {
				return summary, fmt.Errorf("%w: 写入最终考勤失败 date_key=%s student_id=%s: %v", ErrStoreUnavailable, dateKey, studentID, err)
			}
			e.logger.WithError(err).WithFields(logrus.Fields{
				"date_key":   dateKey,
				"student_id": studentID,
			}).Warn("写入最终考勤失败，跳过该学生")
			if partial == nil {
				partial = &PartialFailureError{DateKey: dateKey, Causes: make(map[string]error)}
			}
			partial.Students = append(partial.Students, studentID)
			partial.Causes[studentID] = err
			continue
		}

		summary.StudentsResolved++
		summary.Tally.Add(res.Present, res.HasPermission)
		switch outcome {
		case outcomeCreated:
			summary.RecordsCreated++
		case outcomeUpdated:
			summary.RecordsUpdated++
		default:
			summary.RecordsUnchanged++
		}
		if conflictResolved {
			summary.ConflictsResolved++
		}
	}

	if partial != nil {
		summary.FailedStudents = partial.Students
		return summary, partial
	}
	return summary, nil
}

// upsert 原子条件写入：不存在则 Insert，存在且不同则按 version CAS。
// 已存记录依据的提交更多（source_count 更大）时本次写入作废，计为未变化。
// 条件写入被其他调用方抢先时重新读取并重试一次，仍冲突则计为未变化。
// conflictResolved 表示没有新增提交、但裁决胜出者与已存结果不同。
func (e *AggregationEngine) upsert(ctx context.Context, dateKey string, res *model.Resolution, aggregatedAt time.Time) (upsertOutcome, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := e.getRecord(ctx, res.StudentID, dateKey)
		switch {
		case errors.Is(err, repository.ErrRecordNotFound):
			err = e.insertRecord(ctx, model.NewCanonicalRecord(dateKey, res, aggregatedAt))
			if err == nil {
				return outcomeCreated, false, nil
			}
		case err != nil:
			return outcomeUnchanged, false, err
		case existing.SourceCount > res.SourceCount:
			// 本次扫描早于已落库结果所依据的扫描
			e.logger.WithFields(logrus.Fields{
				"date_key":      dateKey,
				"student_id":    res.StudentID,
				"stored_count":  existing.SourceCount,
				"scanned_count": res.SourceCount,
			}).Debug("最终考勤已由更新的扫描写入，跳过")
			return outcomeUnchanged, false, nil
		case existing.Matches(res) && existing.SourceCount == res.SourceCount:
			return outcomeUnchanged, false, nil
		case existing.Matches(res):
			err = e.swapRecord(ctx, existing.Refresh(res.SourceCount, aggregatedAt), existing.Version)
			if err == nil {
				return outcomeUnchanged, false, nil
			}
		default:
			err = e.swapRecord(ctx, existing.Next(res, aggregatedAt), existing.Version)
			if err == nil {
				return outcomeUpdated, existing.SourceCount == res.SourceCount, nil
			}
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return outcomeUnchanged, false, err
		}
		e.logger.WithFields(logrus.Fields{
			"date_key":   dateKey,
			"student_id": res.StudentID,
			"attempt":    attempt + 1,
		}).Debug("最终考勤被并发写入抢先，重新读取")
	}
	return outcomeUnchanged, false, nil
}

func (e *AggregationEngine) listEntries(ctx context.Context, dateKey string) ([]*model.ProvisionalEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	return e.submissions.ListByDateKey(ctx, dateKey)
}

func (e *AggregationEngine) getRecord(ctx context.Context, studentID, dateKey string) (*model.CanonicalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	return e.canonical.Get(ctx, studentID, dateKey)
}

func (e *AggregationEngine) insertRecord(ctx context.Context, rec *model.CanonicalRecord) error {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	return e.canonical.Insert(ctx, rec)
}

func (e *AggregationEngine) swapRecord(ctx context.Context, rec *model.CanonicalRecord, expectedVersion int64) error {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	return e.canonical.CompareAndSwap(ctx, rec, expectedVersion)
}
