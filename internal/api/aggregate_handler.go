package api

import (
	"errors"
	"net/http"
	"sync"

	"AttendanceSync/internal/interfaces"
	"AttendanceSync/internal/model"
	"AttendanceSync/internal/service"
	"AttendanceSync/internal/utils/datekey"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// 错误码
const (
	CodeInvalidDateKey   = "INVALID_DATE_KEY"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodePartialFailure   = "PARTIAL_FAILURE"
	CodeUnauthorized     = "UNAUTHORIZED"
)

var registerOnce sync.Once

// registerValidators 把 datekey 标签注册到 gin 的校验器
func registerValidators(logger *logrus.Logger) {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			logger.Warn("gin 校验器不是 validator/v10，跳过 datekey 注册")
			return
		}
		if err := datekey.RegisterValidation(v); err != nil {
			logger.WithError(err).Error("注册 datekey 校验失败")
		}
	})
}

type aggregateQuery struct {
	Date string `form:"date" binding:"omitempty,datekey"`
}

type AggregateHandler struct {
	runner interfaces.AggregationRunner
	logger *logrus.Logger
}

func NewAggregateHandler(runner interfaces.AggregationRunner, logger *logrus.Logger) *AggregateHandler {
	registerValidators(logger)
	return &AggregateHandler{
		runner: runner,
		logger: logger,
	}
}

// Aggregate 按需触发考勤聚合
// @Summary 聚合指定日期的临时考勤
// @Param date query string false "日期键 YYYY-MM-DD（默认当天）"
// @Success 200 {object} model.RunSummary
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]interface{}
// @Router /aggregate [get]
func (h *AggregateHandler) Aggregate(c *gin.Context) {
	var q aggregateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "date 格式应为 YYYY-MM-DD",
			"code":  CodeInvalidDateKey,
		})
		return
	}

	summary, err := h.runner.Aggregate(c.Request.Context(), q.Date, model.TriggerHTTP)
	if err != nil {
		status, body := errorResponse(err)
		if errors.Is(err, service.ErrPartialFailure) {
			body["summary"] = summary
		}
		if status >= http.StatusInternalServerError {
			h.logger.WithError(err).WithField("date_key", q.Date).Error("按需考勤聚合失败")
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// errorResponse 错误分类映射为 HTTP 状态码
func errorResponse(err error) (int, gin.H) {
	switch {
	case errors.Is(err, service.ErrInvalidDateKey):
		return http.StatusBadRequest, gin.H{"error": err.Error(), "code": CodeInvalidDateKey}
	case errors.Is(err, service.ErrPartialFailure):
		return http.StatusInternalServerError, gin.H{"error": err.Error(), "code": CodePartialFailure}
	default:
		return http.StatusInternalServerError, gin.H{"error": err.Error(), "code": CodeStoreUnavailable}
	}
}
