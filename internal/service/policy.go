package service

import (
	"AttendanceSync/internal/config"
	"AttendanceSync/internal/model"
)

// Policy 同一学生同一天多条提交的裁决规则。
// 默认偏向对学生更有利的结果：出勤优先于缺勤，请假优先于旷课；同侧内最后提交者胜出。
type Policy struct {
	PreferPresence   bool
	PreferPermission bool
}

// DefaultPolicy 默认裁决规则
func DefaultPolicy() Policy {
	return Policy{PreferPresence: true, PreferPermission: true}
}

// PolicyFromConfig 从聚合配置读取裁决规则
func PolicyFromConfig(cfg config.AggregationConfig) Policy {
	return Policy{PreferPresence: cfg.PreferPresence, PreferPermission: cfg.PreferPermission}
}

// Resolve 将同一学生的提交归并为一条结果；entries 为空返回 nil。不修改入参
func (p Policy) Resolve(entries []*model.ProvisionalEntry) *model.Resolution {
	if len(entries) == 0 {
		return nil
	}

	// 1. 确定出勤/缺勤侧：未开启出勤优先时按最后提交者
	present := latest(entries).Present
	if p.PreferPresence && anyMatch(entries, func(e *model.ProvisionalEntry) bool { return e.Present }) {
		present = true
	}
	candidates := filter(entries, func(e *model.ProvisionalEntry) bool { return e.Present == present })

	// 2. 缺勤侧：存在请假提交时只在请假提交中选
	if !present && p.PreferPermission {
		if permitted := filter(candidates, func(e *model.ProvisionalEntry) bool { return e.HasPermission }); len(permitted) > 0 {
			candidates = permitted
		}
	}

	// 3. 同侧内最后提交者胜出
	winner := latest(candidates)

	res := &model.Resolution{
		StudentID:    winner.StudentID,
		Present:      winner.Present,
		ResolvedFrom: winner.SubmissionID,
		MarkedBy:     winner.MarkedBy,
		SourceCount:  len(entries),
		Conflicting:  conflicting(entries),
	}
	if !winner.Present {
		res.HasPermission = winner.HasPermission
		res.Reason = winner.Reason
	}
	return res
}

// latest submitted_at 最大者；相同时取 submission_id 字典序较大者，保证结果确定
func latest(entries []*model.ProvisionalEntry) *model.ProvisionalEntry {
	var best *model.ProvisionalEntry
	for _, e := range entries {
		if best == nil ||
			e.SubmittedAt.After(best.SubmittedAt) ||
			(e.SubmittedAt.Equal(best.SubmittedAt) && e.SubmissionID > best.SubmissionID) {
			best = e
		}
	}
	return best
}

func filter(entries []*model.ProvisionalEntry, keep func(*model.ProvisionalEntry) bool) []*model.ProvisionalEntry {
	out := make([]*model.ProvisionalEntry, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func anyMatch(entries []*model.ProvisionalEntry, pred func(*model.ProvisionalEntry) bool) bool {
	for _, e := range entries {
		if pred(e) {
			return true
		}
	}
	return false
}

func conflicting(entries []*model.ProvisionalEntry) bool {
	first := entries[0]
	for _, e := range entries[1:] {
		if e.Present != first.Present || (!e.Present && e.HasPermission != first.HasPermission) {
			return true
		}
	}
	return false
}
