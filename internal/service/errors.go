package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDateKey 调用方传入的日期键无法解析，不访问存储、不重试
	ErrInvalidDateKey = errors.New("日期键格式非法")
	// ErrStoreUnavailable 存储不可达或超时，整次运行中止；已原子提交的写入保留，可立即重试
	ErrStoreUnavailable = errors.New("存储不可用")
	// ErrPartialFailure 部分学生写入失败，其余学生已正常聚合
	ErrPartialFailure = errors.New("部分学生考勤聚合失败")
)

// PartialFailureError 记录写入失败的学生；errors.Is(err, ErrPartialFailure) 成立
type PartialFailureError struct {
	DateKey  string
	Students []string
	Causes   map[string]error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s: date_key=%s students=[%s]", ErrPartialFailure.Error(), e.DateKey, strings.Join(e.Students, ","))
}

func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialFailure
}
