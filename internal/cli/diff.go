package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mason-iac/mason/internal/deploy"
	"github.com/mason-iac/mason/internal/diff"
)

func newDiffCmd(app App) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show changes against the deployed stack without applying them",
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

			orch := deploy.NewOrchestrator(deploy.NewCloudFormationAPI(cfg), app.StackName, deploy.Options{})
			result, err := orch.Plan(ctx, sb)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Stack %s:\n", app.StackName)
			fmt.Fprint(out, diff.Format(result))
			added, removed, modified, replaced, unchanged := result.Summary()
			fmt.Fprintf(out, "\nPlan: %d to add, %d to change, %d to replace, %d to remove, %d unchanged.\n",
				added, modified, replaced, removed, unchanged)
			return nil
		},
	}
}
