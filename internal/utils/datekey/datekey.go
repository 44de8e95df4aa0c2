// Package datekey 将时间映射为聚合分区使用的日期键（YYYY-MM-DD）。
// 该格式已持久化到 temp_attendance / attendance 的 date_key 列，修改格式等同于数据迁移。
package datekey

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Layout 日期键格式，零填充，字典序与日期序一致
const Layout = "2006-01-02"

// ValidationTag 注册到 validator 的标签名
const ValidationTag = "datekey"

// Calendar 按配置时区计算日期键
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar 创建 Calendar；loc 为 nil 时使用 time.Local
func NewCalendar(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{loc: loc, now: time.Now}
}

// LoadCalendar 按时区名称创建 Calendar（如 Asia/Shanghai），空串表示 Local
func LoadCalendar(name string) (*Calendar, error) {
	if name == "" || name == "Local" {
		return NewCalendar(time.Local), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("加载时区%s失败: %w", name, err)
	}
	return NewCalendar(loc), nil
}

// WithClock 替换时钟，测试用
func (c *Calendar) WithClock(now func() time.Time) *Calendar {
	return &Calendar{loc: c.loc, now: now}
}

// Location 返回日历时区
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// ToDateKey 时间转日期键
func (c *Calendar) ToDateKey(t time.Time) string {
	return t.In(c.loc).Format(Layout)
}

// Today 当前时间对应的日期键
func (c *Calendar) Today() string {
	return c.ToDateKey(c.now())
}

// Parse 严格解析日期键：必须能被 Layout 解析且重新格式化后与原串一致
func (c *Calendar) Parse(key string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, key, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("日期键%q格式非法: %w", key, err)
	}
	if t.Format(Layout) != key {
		return time.Time{}, fmt.Errorf("日期键%q格式非法", key)
	}
	return t, nil
}

// Valid 日期键格式校验，与时区无关
func Valid(key string) bool {
	t, err := time.Parse(Layout, key)
	return err == nil && t.Format(Layout) == key
}

// RegisterValidation 向 validator 注册 datekey 标签
func RegisterValidation(v *validator.Validate) error {
	return v.RegisterValidation(ValidationTag, func(fl validator.FieldLevel) bool {
		return Valid(fl.Field().String())
	})
}
