package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"AttendanceSync/internal/config"
	"AttendanceSync/internal/interfaces"
	"AttendanceSync/internal/utils/datekey"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TriggerTokenHeader 触发聚合时携带共享令牌的请求头
const TriggerTokenHeader = "X-Trigger-Token"

// NewRouter 注册全部路由
func NewRouter(
	cfg config.ServerConfig,
	runner interfaces.AggregationRunner,
	reporter interfaces.AttendanceReporter,
	calendar *datekey.Calendar,
	logger *logrus.Logger,
) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	// 注册ppof 方便调试和监测性能问题
	if cfg.Pprof {
		pprof.Register(r)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	aggregateHandler := NewAggregateHandler(runner, logger)
	r.GET("/aggregate", requireTriggerToken(cfg.TriggerToken), aggregateHandler.Aggregate)

	attendanceHandler := NewAttendanceHandler(reporter, calendar, logger)
	r.GET("/api/attendance", attendanceHandler.DailyReport)
	r.GET("/api/aggregation/runs", attendanceHandler.RecentRuns)

	return r
}

// requireTriggerToken 外部鉴权网关的简化替代：配置了令牌时校验请求头
func requireTriggerToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.GetHeader(TriggerTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "无权触发考勤聚合",
				"code":  CodeUnauthorized,
			})
			return
		}
		c.Next()
	}
}

// requestLogger 用 logrus 记录请求
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}).Debug("http request")
	}
}
