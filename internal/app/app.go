package app

import (
	"fmt"

	"AttendanceSync/internal/api"
	"AttendanceSync/internal/config"
	"AttendanceSync/internal/repository"
	"AttendanceSync/internal/service"
	"AttendanceSync/internal/utils/datekey"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App 按配置组装好的全部组件
type App struct {
	Config      *config.Config
	Logger      *logrus.Logger
	Calendar    *datekey.Calendar
	Submissions repository.SubmissionRepository
	Aggregation *service.AggregationService
	Reports     *service.ReportService
	Scheduler   *service.Scheduler

	db *gorm.DB
}

// New 初始化存储、聚合服务与定时任务
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	cal, err := datekey.LoadCalendar(cfg.Aggregation.Timezone)
	if err != nil {
		return nil, fmt.Errorf("加载时区失败: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, Calendar: cal}

	var (
		submissions repository.SubmissionRepository
		canonical   repository.CanonicalRepository
		runs        repository.RunRepository
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logger.Warn("使用内存存储，进程退出后考勤数据丢失")
		submissions = repository.NewMemorySubmissionRepository()
		canonical = repository.NewMemoryCanonicalRepository()
		runs = repository.NewMemoryRunRepository()
	default:
		db, err := repository.OpenPostgres(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("PostgreSQL连接成功")
		a.db = db
		if cfg.Database.AutoMigrate {
			if err := repository.AutoMigrate(db); err != nil {
				_ = a.Close()
				return nil, err
			}
			logger.Info("数据库表结构检查完成（不存在则已创建）")
		}
		submissions = repository.NewSubmissionRepository(db)
		canonical = repository.NewCanonicalRepository(db)
		runs = repository.NewRunRepository(db)
	}

	engine := service.NewAggregationEngine(
		submissions,
		canonical,
		service.PolicyFromConfig(cfg.Aggregation),
		cfg.Aggregation.StoreTimeout,
		logger,
	)
	a.Submissions = submissions
	a.Aggregation = service.NewAggregationService(engine, runs, cal, logger)
	a.Reports = service.NewReportService(canonical, runs)
	a.Scheduler = service.NewScheduler(a.Aggregation, cal, cfg.Aggregation.Interval, cfg.Aggregation.RunOnStart, logger)
	return a, nil
}

// Router HTTP 路由
func (a *App) Router() *gin.Engine {
	return api.NewRouter(a.Config.Server, a.Aggregation, a.Reports, a.Calendar, a.Logger)
}

// Close 关闭数据库连接
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
