package cli

import (
	"fmt"
	"time"

	"AttendanceSync/internal/model"
	"AttendanceSync/internal/utils/datekey"

	"github.com/spf13/cobra"
)

// SubmitOptions submit 子命令参数
type SubmitOptions struct {
	*RootOptions
	StudentID     string
	Date          string
	Present       bool
	HasPermission bool
	Reason        string
	MarkedBy      string
}

// NewSubmitCommand 追加一条临时考勤（运维补录用）
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "追加一条临时考勤到 temp_attendance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.StudentID == "" || opts.MarkedBy == "" {
				return fmt.Errorf("--student 与 --marked-by 不能为空")
			}
			a, err := bootstrap(opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()

			dateKey := opts.Date
			if dateKey == "" {
				dateKey = a.Calendar.Today()
			}
			if !datekey.Valid(dateKey) {
				return fmt.Errorf("日期键%q格式非法，应为 YYYY-MM-DD", dateKey)
			}

			e := &model.ProvisionalEntry{
				StudentID:     opts.StudentID,
				DateKey:       dateKey,
				Present:       opts.Present,
				HasPermission: !opts.Present && opts.HasPermission,
				Reason:        opts.Reason,
				MarkedBy:      opts.MarkedBy,
				SubmittedAt:   time.Now(),
			}
			if opts.Present {
				e.Reason = ""
			}
			if err := a.Submissions.Append(cmd.Context(), e); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), e)
		},
	}

	cmd.Flags().StringVar(&opts.StudentID, "student", "", "学生 ID")
	cmd.Flags().StringVarP(&opts.Date, "date", "d", "", "日期键 YYYY-MM-DD（默认当天）")
	cmd.Flags().BoolVar(&opts.Present, "present", false, "是否出勤")
	cmd.Flags().BoolVar(&opts.HasPermission, "permission", false, "缺勤是否已请假")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "缺勤原因")
	cmd.Flags().StringVar(&opts.MarkedBy, "marked-by", "", "提交老师 ID")
	return cmd
}
