package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mason-iac/mason/internal/deploy"
)

func newDestroyCmd(app App) *cobra.Command {
	var (
		pollInterval time.Duration
		maxWait      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete the deployed stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadAWSConfig(ctx)
			if err != nil {
				return err
			}

			orch := deploy.NewOrchestrator(deploy.NewCloudFormationAPI(cfg), app.StackName, deploy.Options{
				PollInterval: pollInterval,
				MaxWait:      maxWait,
			})
			outcome := orch.Destroy(ctx)
			if outcome.Err != nil {
				return outcome.Err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stack %s: destroyed\n", app.StackName)
			return nil
		},
	}

	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 10*time.Second, "interval between status polls")
	cmd.Flags().DurationVar(&maxWait, "timeout", 30*time.Minute, "total wait cap for the deletion")
	return cmd
}
