package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"AttendanceSync/internal/model"
)

// 内存实现：storage.driver=memory 时使用，也供单元测试使用。读写均复制值，调用方拿到的指针不与存储共享。

type memorySubmissionRepository struct {
	mu      sync.RWMutex
	entries map[string][]model.ProvisionalEntry // date_key -> entries
	ids     map[string]struct{}
	nextID  uint64
}

// NewMemorySubmissionRepository 创建内存版临时考勤仓储
func NewMemorySubmissionRepository() SubmissionRepository {
	return &memorySubmissionRepository{
		entries: make(map[string][]model.ProvisionalEntry),
		ids:     make(map[string]struct{}),
	}
}

func (r *memorySubmissionRepository) ListByDateKey(ctx context.Context, dateKey string) ([]*model.ProvisionalEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*model.ProvisionalEntry, 0, len(r.entries[dateKey]))
	for _, e := range r.entries[dateKey] {
		e := e
		list = append(list, &e)
	}
	return list, nil
}

func (r *memorySubmissionRepository) Append(ctx context.Context, entry *model.ProvisionalEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := prepareEntry(entry); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[entry.SubmissionID]; ok {
		return fmt.Errorf("submission_id %s 已存在", entry.SubmissionID)
	}
	r.nextID++
	entry.ID = r.nextID
	r.ids[entry.SubmissionID] = struct{}{}
	r.entries[entry.DateKey] = append(r.entries[entry.DateKey], *entry)
	return nil
}

type canonicalKey struct {
	studentID string
	dateKey   string
}

type memoryCanonicalRepository struct {
	mu      sync.RWMutex
	records map[canonicalKey]model.CanonicalRecord
	nextID  uint64
}

// NewMemoryCanonicalRepository 创建内存版最终考勤仓储，条件写入在同一把锁内完成
func NewMemoryCanonicalRepository() CanonicalRepository {
	return &memoryCanonicalRepository{
		records: make(map[canonicalKey]model.CanonicalRecord),
	}
}

func (r *memoryCanonicalRepository) Get(ctx context.Context, studentID, dateKey string) (*model.CanonicalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[canonicalKey{studentID, dateKey}]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

func (r *memoryCanonicalRepository) Insert(ctx context.Context, rec *model.CanonicalRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := canonicalKey{rec.StudentID, rec.DateKey}
	if _, ok := r.records[key]; ok {
		return ErrVersionConflict
	}
	r.nextID++
	rec.ID = r.nextID
	rec.CreatedAt = rec.AggregatedAt
	rec.UpdatedAt = rec.AggregatedAt
	r.records[key] = *rec
	return nil
}

func (r *memoryCanonicalRepository) CompareAndSwap(ctx context.Context, rec *model.CanonicalRecord, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := canonicalKey{rec.StudentID, rec.DateKey}
	cur, ok := r.records[key]
	if !ok || cur.Version != expectedVersion || cur.SourceCount > rec.SourceCount {
		return ErrVersionConflict
	}
	next := *rec
	next.ID = cur.ID
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = rec.AggregatedAt
	r.records[key] = next
	return nil
}

func (r *memoryCanonicalRepository) ListByDateKey(ctx context.Context, dateKey string) ([]*model.CanonicalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []*model.CanonicalRecord
	for k, rec := range r.records {
		if k.dateKey != dateKey {
			continue
		}
		rec := rec
		list = append(list, &rec)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StudentID < list[j].StudentID })
	return list, nil
}

type memoryRunRepository struct {
	mu     sync.RWMutex
	runs   []model.AggregationRun
	nextID uint64
}

// NewMemoryRunRepository 创建内存版运行日志仓储
func NewMemoryRunRepository() RunRepository {
	return &memoryRunRepository{}
}

func (r *memoryRunRepository) Save(ctx context.Context, run *model.AggregationRun) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	run.ID = r.nextID
	r.runs = append(r.runs, *run)
	return nil
}

func (r *memoryRunRepository) ListRecent(ctx context.Context, dateKey string, limit int) ([]*model.AggregationRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []*model.AggregationRun
	for i := len(r.runs) - 1; i >= 0 && len(list) < limit; i-- {
		if dateKey != "" && r.runs[i].DateKey != dateKey {
			continue
		}
		run := r.runs[i]
		list = append(list, &run)
	}
	return list, nil
}
