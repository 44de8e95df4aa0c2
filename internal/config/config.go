package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（与 config/config.yaml 对应）
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`      // 服务器配置
	Storage     StorageConfig     `mapstructure:"storage"`     // 存储选择
	Database    DatabaseConfig    `mapstructure:"database"`    // PostgreSQL 配置
	Aggregation AggregationConfig `mapstructure:"aggregation"` // 聚合任务配置
	Log         LogConfig         `mapstructure:"log"`         // 日志配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`          // 服务端口
	Mode         string `mapstructure:"mode"`          // Gin运行模式：debug/release/test
	Pprof        bool   `mapstructure:"pprof"`         // 是否注册 pprof 路由
	TriggerToken string `mapstructure:"trigger_token"` // 触发聚合所需的共享令牌，空表示不校验
}

// StorageConfig 存储后端
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres / memory
}

// DatabaseConfig PostgreSQL 配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN（URL 形式）
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
	LogLevel        string        `mapstructure:"log_level"`         // GORM 日志级别：silent/error/warn/info
	AutoMigrate     bool          `mapstructure:"auto_migrate"`      // 启动时自动建表
}

// AggregationConfig 考勤聚合配置
type AggregationConfig struct {
	Interval         time.Duration `mapstructure:"interval"`          // 定时聚合周期
	StoreTimeout     time.Duration `mapstructure:"store_timeout"`     // 单次存储调用超时
	Timezone         string        `mapstructure:"timezone"`          // 日期键所用时区
	RunOnStart       bool          `mapstructure:"run_on_start"`      // 启动后立即跑一次
	PreferPresence   bool          `mapstructure:"prefer_presence"`   // 出勤优先于缺勤
	PreferPermission bool          `mapstructure:"prefer_permission"` // 请假优先于旷课
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`        // debug/info/warn/error
	Format     string `mapstructure:"format"`       // text/json
	File       string `mapstructure:"file"`         // 日志文件路径，空表示仅输出到 stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单文件大小上限
	MaxBackups int    `mapstructure:"max_backups"`  // 保留文件个数
	MaxAgeDays int    `mapstructure:"max_age_days"` // 保留天数
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.pprof", false)
	v.SetDefault("storage.driver", StorageDriverPostgres)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("aggregation.interval", time.Hour)
	v.SetDefault("aggregation.store_timeout", 10*time.Second)
	v.SetDefault("aggregation.timezone", "Local")
	v.SetDefault("aggregation.run_on_start", true)
	v.SetDefault("aggregation.prefer_presence", true)
	v.SetDefault("aggregation.prefer_permission", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
}

// LoadConfig 加载配置文件，path 为空时读取 ./config/config.yaml（不存在则全部使用默认值）。
// 敏感项从 .env / 环境变量覆盖（不提交 git）
func LoadConfig(path string) (*Config, error) {
	// 1. 加载 .env（若存在）
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	v := viper.New()
	setDefaults(v)
	v.SetTypeByDefaultValue(true)

	// 2. 读取 yaml
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 3. ATTENDANCE_AGGREGATION_INTERVAL 这类环境变量可覆盖任意键
	v.SetEnvPrefix("ATTENDANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 4. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("TRIGGER_TOKEN"); v != "" {
		cfg.Server.TriggerToken = v
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("storage.driver=postgres 时 database.dsn 不能为空")
		}
	default:
		return fmt.Errorf("未支持的存储类型: %s", c.Storage.Driver)
	}
	if c.Aggregation.Interval <= 0 {
		return fmt.Errorf("aggregation.interval 必须大于 0")
	}
	if c.Aggregation.StoreTimeout <= 0 {
		return fmt.Errorf("aggregation.store_timeout 必须大于 0")
	}
	if c.Aggregation.Timezone != "" && c.Aggregation.Timezone != "Local" {
		if _, err := time.LoadLocation(c.Aggregation.Timezone); err != nil {
			return fmt.Errorf("aggregation.timezone 非法: %w", err)
		}
	}
	return nil
}
