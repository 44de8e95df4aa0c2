package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"AttendanceSync/internal/model"

	"github.com/spf13/cobra"
)

// AggregateOptions aggregate 子命令参数
type AggregateOptions struct {
	*RootOptions
	Date string
}

// NewAggregateCommand 单次聚合，结果以 JSON 输出；失败时退出码非 0
func NewAggregateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AggregateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "立即聚合指定日期（默认当天）的临时考勤",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, runErr := a.Aggregation.Aggregate(cmd.Context(), opts.Date, model.TriggerCLI)
			if summary != nil {
				if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&opts.Date, "date", "d", "", "日期键 YYYY-MM-DD（默认当天）")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化输出失败: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
