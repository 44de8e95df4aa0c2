package cli

import (
	"fmt"

	"AttendanceSync/internal/app"
	"AttendanceSync/internal/config"
	"AttendanceSync/internal/utils/logger"

	"github.com/spf13/cobra"
)

// RootOptions 全局参数
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand 命令行入口
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "attendance-sync",
		Short:         "考勤聚合服务",
		Long:          "把老师提交的临时考勤（temp_attendance）按学生、按天聚合为最终考勤（attendance）。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "配置文件路径（默认 ./config/config.yaml）")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewAggregateCommand(opts))
	cmd.AddCommand(NewSubmitCommand(opts))

	return cmd
}

// bootstrap 加载配置、日志并组装应用
func bootstrap(opts *RootOptions) (*app.App, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置文件失败: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	log.Info("配置文件加载成功")

	a, err := app.New(cfg, log)
	if err != nil {
		return nil, err
	}
	return a, nil
}
