package api

import (
	"net/http"
	"strconv"

	"AttendanceSync/internal/interfaces"
	"AttendanceSync/internal/utils/datekey"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AttendanceHandler 最终考勤与运行日志查询
type AttendanceHandler struct {
	reporter interfaces.AttendanceReporter
	calendar *datekey.Calendar
	logger   *logrus.Logger
}

func NewAttendanceHandler(reporter interfaces.AttendanceReporter, calendar *datekey.Calendar, logger *logrus.Logger) *AttendanceHandler {
	return &AttendanceHandler{reporter: reporter, calendar: calendar, logger: logger}
}

// DailyReport 某天最终考勤 + 出勤统计
// GET /api/attendance?date=2024-01-10
func (h *AttendanceHandler) DailyReport(c *gin.Context) {
	dateKey := c.DefaultQuery("date", h.calendar.Today())

	report, err := h.reporter.DailyReport(c.Request.Context(), dateKey)
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			h.logger.WithError(err).Error("DailyReport failed")
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, report)
}

// RecentRuns 最近的聚合运行日志
// GET /api/aggregation/runs?date=2024-01-10&limit=20
func (h *AttendanceHandler) RecentRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.reporter.RecentRuns(c.Request.Context(), c.Query("date"), limit)
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			h.logger.WithError(err).Error("RecentRuns failed")
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
