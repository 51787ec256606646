package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mason-iac/mason/internal/deploy"
	"github.com/mason-iac/mason/internal/diff"
	"github.com/mason-iac/mason/internal/lookup"
)

func newDeployCmd(app App) *cobra.Command {
	var (
		strictVerify bool
		pollInterval time.Duration
		maxWait      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the stack",
		Long: `Assembles and validates the stack, synthesizes its template, diffs it
against what is currently deployed, and submits the difference.

Cancelling (Ctrl-C) stops waiting locally but does not stop the
provider-side operation, which continues or rolls back on its own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sb, err := defineStack(app)
			if err != nil {
				return err
			}
			cfg, err := loadAWSConfig(ctx)
			if err != nil {
				return err
			}
			sb.WithVerifier(lookup.NewAWSVerifier(cfg), strictVerify)

			orch := deploy.NewOrchestrator(deploy.NewCloudFormationAPI(cfg), app.StackName, deploy.Options{
				PollInterval: pollInterval,
				MaxWait:      maxWait,
				Uploader:     deploy.NewS3Uploader(cfg),
			})

			outcome := orch.Deploy(ctx, sb)
			out := cmd.OutOrStdout()
			if outcome.Diff != nil {
				fmt.Fprint(out, diff.Format(outcome.Diff))
			}
			if outcome.Err != nil {
				return outcome.Err
			}
			fmt.Fprintf(out, "\nStack %s: %s\n", app.StackName, outcome.State)
			return nil
		},
	}

	cmd.Flags().BoolVar(&strictVerify, "strict-verify", false, "fail validation when a declared external resource cannot be found")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 10*time.Second, "interval between status polls")
	cmd.Flags().DurationVar(&maxWait, "timeout", 30*time.Minute, "total wait cap for the deployment")
	return cmd
}
